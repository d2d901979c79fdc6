package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/adamancini/uplift/internal/types"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// gitHubRelease is the subset of the releases API response we read.
type gitHubRelease struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	HTMLURL    string `json:"html_url"`
	ZipballURL string `json:"zipball_url"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	Assets     []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// APIResolver resolves github.com sources through the releases API.
type APIResolver struct {
	pages   PageFetcher
	baseURL string
}

// NewAPIResolver creates a resolver that queries baseURL (DefaultGitHubAPI
// when empty) through pages.
func NewAPIResolver(pages PageFetcher, baseURL string) *APIResolver {
	if baseURL == "" {
		baseURL = DefaultGitHubAPI
	}
	return &APIResolver{pages: pages, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewGitHubTransport returns a transport with GitHub API headers. The
// token, if any, is only sent to GitHub hosts.
func NewGitHubTransport(token string, opts ...TransportOption) *HTTPTransport {
	base := []TransportOption{
		WithHeader("Accept", "application/vnd.github+json"),
		WithHeader("X-GitHub-Api-Version", "2022-11-28"),
	}
	if token != "" {
		base = append(base, WithToken(token, "api.github.com", "github.com"))
	}
	return NewHTTPTransport(append(base, opts...)...)
}

// Resolve returns the latest published release of the repository at source.
func (r *APIResolver) Resolve(ctx context.Context, source string) (*ResolvedRelease, error) {
	owner, repo, err := ownerRepo(source)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.baseURL, owner, repo)
	body, err := r.pages.FetchText(ctx, endpoint)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w for %s/%s", ErrNoReleases, owner, repo)
		}
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrUnreachable, owner, repo, err)
	}

	var rel gitHubRelease
	if err := json.Unmarshal([]byte(body), &rel); err != nil {
		return nil, fmt.Errorf("%w: failed to decode release for %s/%s: %w", ErrUnreachable, owner, repo, err)
	}
	if rel.TagName == "" || rel.Draft {
		return nil, fmt.Errorf("%w for %s/%s", ErrNoReleases, owner, repo)
	}

	out := pickAsset(&rel)
	if out.DownloadLink == "" {
		return nil, fmt.Errorf("%w: release %s of %s/%s has no download", ErrNoReleases, rel.TagName, owner, repo)
	}
	return out, nil
}

// pickAsset prefers an archive asset, then any asset, then the source zipball.
func pickAsset(rel *gitHubRelease) *ResolvedRelease {
	out := &ResolvedRelease{Label: rel.TagName}

	for _, a := range rel.Assets {
		if types.KindForName(a.Name).IsArchive() {
			out.DownloadLink = a.BrowserDownloadURL
			out.Kind = types.ArtifactArchive
			return out
		}
	}
	if len(rel.Assets) > 0 {
		out.DownloadLink = rel.Assets[0].BrowserDownloadURL
		out.Kind = types.KindForName(rel.Assets[0].Name)
		return out
	}

	out.DownloadLink = rel.ZipballURL
	out.Kind = types.ArtifactArchive
	return out
}

// ownerRepo extracts "owner" and "repo" from a github.com URL or an
// "owner/repo" shorthand.
func ownerRepo(source string) (string, string, error) {
	s := strings.TrimSpace(source)
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", "", fmt.Errorf("%w: invalid source %q: %w", ErrUnsupported, source, err)
		}
		s = u.Path
	}

	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: source %q does not name an owner/repo", ErrUnsupported, source)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
