package update

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/adamancini/uplift/internal/types"
)

// linkClass orders candidate links; lower is preferred.
type linkClass int

const (
	classArchive linkClass = iota
	classAsset
	classSourcePage
)

type candidate struct {
	class linkClass
	label string
	link  string
	kind  types.ArtifactKind
}

// PageResolver finds the newest release by reading the HTML tags listing
// published under a repository URL.
type PageResolver struct {
	pages PageFetcher
}

// NewPageResolver creates a resolver that reads listings through pages.
func NewPageResolver(pages PageFetcher) *PageResolver {
	return &PageResolver{pages: pages}
}

// TagsURL returns the listing URL for source.
func TagsURL(source string) (string, error) {
	repo, err := repoURL(source)
	if err != nil {
		return "", err
	}
	return repo.JoinPath("tags").String(), nil
}

// Resolve fetches the tags listing for source and picks the first
// release link in document order, preferring downloadable archives over
// release assets over source-tree pages.
func (r *PageResolver) Resolve(ctx context.Context, source string) (*ResolvedRelease, error) {
	repo, err := repoURL(source)
	if err != nil {
		return nil, err
	}
	tags := repo.JoinPath("tags")

	body, err := r.pages.FetchText(ctx, tags.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, redactURL(tags.String()), err)
	}

	var best *candidate
	seen := make(map[string]bool)
	for _, href := range anchorHrefs(body) {
		c, ok := classify(repo, tags, href)
		if !ok || seen[c.link] {
			continue
		}
		seen[c.link] = true
		if best == nil || c.class < best.class {
			best = &c
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w at %s", ErrNoReleases, redactURL(tags.String()))
	}

	if best.class == classSourcePage {
		best.link = repo.JoinPath("archive", best.label+".zip").String()
		best.kind = types.ArtifactArchive
	}

	return &ResolvedRelease{
		Label:        best.label,
		DownloadLink: best.link,
		Kind:         best.kind,
	}, nil
}

// repoURL parses source and ensures a trailing slash so relative
// references resolve beneath it.
func repoURL(source string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid source %q: %w", ErrUnsupported, source, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: source %q is not an http(s) URL", ErrUnsupported, source)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawPath = ""
	return u, nil
}

// anchorHrefs returns the href of every <a> element in document order.
func anchorHrefs(body string) []string {
	var hrefs []string
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return hrefs
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.A || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					hrefs = append(hrefs, strings.TrimSpace(string(val)))
					break
				}
				if !more {
					break
				}
			}
		}
	}
}

// classify decides whether href is a release link under repo.
func classify(repo, page *url.URL, href string) (candidate, bool) {
	if href == "" || strings.HasPrefix(href, "#") {
		return candidate{}, false
	}
	u, err := page.Parse(href)
	if err != nil || !strings.EqualFold(u.Host, repo.Host) {
		return candidate{}, false
	}
	u.Fragment = ""

	rel, ok := strings.CutPrefix(u.Path, repo.Path)
	if !ok {
		return candidate{}, false
	}

	switch {
	case strings.HasPrefix(rel, "archive/"):
		ext := types.ArchiveExtension(rel)
		if ext == "" {
			return candidate{}, false
		}
		label := strings.TrimPrefix(rel, "archive/")
		label = strings.TrimPrefix(label, "refs/tags/")
		if strings.HasPrefix(label, "refs/") {
			// branch snapshots are not releases
			return candidate{}, false
		}
		label = path.Base(label[:len(label)-len(ext)])
		if label == "" || label == "." || label == "/" {
			return candidate{}, false
		}
		return candidate{class: classArchive, label: label, link: u.String(), kind: types.ArtifactArchive}, true

	case strings.HasPrefix(rel, "releases/download/"):
		tag, file, ok := strings.Cut(strings.TrimPrefix(rel, "releases/download/"), "/")
		if !ok || tag == "" || file == "" || strings.HasSuffix(file, "/") {
			return candidate{}, false
		}
		kind := types.KindForName(file)
		class := classAsset
		if kind.IsArchive() {
			class = classArchive
		}
		return candidate{class: class, label: tag, link: u.String(), kind: kind}, true

	default:
		for _, prefix := range []string{"releases/tag/", "tag/"} {
			if label, ok := strings.CutPrefix(rel, prefix); ok {
				label = strings.Trim(label, "/")
				if label == "" || strings.Contains(label, "/") {
					return candidate{}, false
				}
				return candidate{class: classSourcePage, label: label, link: u.String()}, true
			}
		}
	}
	return candidate{}, false
}
