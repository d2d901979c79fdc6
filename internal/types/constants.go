// Package types provides type-safe constants for the uplift update engine.
//
// This package centralizes the enumerated values shared between the
// Updatefile parser, the resolvers, and the installer, replacing magic
// strings with typed constants that carry their own validation.
//
// SYNC REQUIREMENT: These types must stay in sync with:
//   - internal/config/validate.go (runtime validation)
//   - the Updatefile example in README-style help text (internal/cmd/root.go)
package types

import (
	"fmt"
	"path"
	"strings"
)

// ArtifactKind describes the shape of a release artifact.
type ArtifactKind string

const (
	// ArtifactSingleFile is a release that downloads as one file which is
	// itself the payload (for example a lone script).
	ArtifactSingleFile ArtifactKind = "single-file"
	// ArtifactArchive is a compressed archive that must be extracted.
	ArtifactArchive ArtifactKind = "archive"
)

// archiveExtensions are recognised in order; longer suffixes first.
var archiveExtensions = []string{".tar.gz", ".tgz", ".zip"}

// AllArtifactKinds returns all valid artifact kinds.
func AllArtifactKinds() []ArtifactKind {
	return []ArtifactKind{ArtifactSingleFile, ArtifactArchive}
}

// Validate checks if the ArtifactKind is a valid value.
func (k ArtifactKind) Validate() error {
	switch k {
	case ArtifactSingleFile, ArtifactArchive:
		return nil
	case "":
		return fmt.Errorf("artifact kind is required")
	default:
		return fmt.Errorf("invalid artifact kind '%s' (must be one of %s)", k, joinValues(AllArtifactKinds()))
	}
}

// UnmarshalText accepts any case, so decoded reports compare equal to the
// constants. An empty value stays empty.
func (k *ArtifactKind) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = ""
		return nil
	}
	parsed, err := ParseArtifactKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// String returns the string representation of the ArtifactKind.
func (k ArtifactKind) String() string {
	return string(k)
}

// IsArchive returns true if the artifact must be extracted.
func (k ArtifactKind) IsArchive() bool {
	return k == ArtifactArchive
}

// ParseArtifactKind parses a string into an ArtifactKind.
// Returns an error if the string is not a valid artifact kind.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	k := ArtifactKind(strings.ToLower(s))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// ArchiveExtension returns the archive suffix of name (".zip", ".tar.gz",
// ".tgz") or "" when name does not look like an archive.
func ArchiveExtension(name string) string {
	lower := strings.ToLower(path.Base(name))
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}

// KindForName infers the artifact kind from a file name or URL path.
func KindForName(name string) ArtifactKind {
	if ArchiveExtension(name) != "" {
		return ArtifactArchive
	}
	return ArtifactSingleFile
}

// Strategy selects how a component's releases are discovered.
type Strategy string

const (
	// StrategyScrape parses the hosting provider's HTML tags page.
	StrategyScrape Strategy = "scrape"
	// StrategyGitHubAPI queries the structured GitHub releases API.
	StrategyGitHubAPI Strategy = "github-api"
)

// AllStrategies returns all valid strategies.
func AllStrategies() []Strategy {
	return []Strategy{StrategyScrape, StrategyGitHubAPI}
}

// Validate checks if the Strategy is a valid value.
// Empty strategy is valid and means the default (scrape).
func (s Strategy) Validate() error {
	switch s {
	case StrategyScrape, StrategyGitHubAPI, "":
		return nil
	default:
		return fmt.Errorf("invalid strategy '%s' (must be one of %s)", s, joinValues(AllStrategies()))
	}
}

// String returns the string representation of the Strategy.
func (s Strategy) String() string {
	return string(s)
}

// Default returns the default strategy if empty, otherwise the current one.
func (s Strategy) Default() Strategy {
	if s == "" {
		return StrategyScrape
	}
	return s
}

// ParseStrategy parses a string into a Strategy.
// Returns an error if the string is not a valid strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(s))
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
