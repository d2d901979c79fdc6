package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/adamancini/uplift/internal/types"
)

// ValidationError represents a single Updatefile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "validation errors:\n  - " + strings.Join(msgs, "\n  - ")
}

// Validate checks the Updatefile for required fields and valid values.
func Validate(f *Updatefile) error {
	var errs ValidationErrors

	if f.Version != CurrentVersion {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (expected %d)", f.Version, CurrentVersion),
		})
	}

	errs = append(errs, validateSettings(f.Settings)...)

	seen := make(map[string]int)
	for i, c := range f.Components {
		errs = append(errs, validateComponent(i, c)...)
		if c.Name == "" {
			continue
		}
		if first, dup := seen[c.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("components[%d].name", i),
				Message: fmt.Sprintf("duplicate name '%s' (first defined at components[%d])", c.Name, first),
			})
			continue
		}
		seen[c.Name] = i
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateSettings(s Settings) []ValidationError {
	var errs []ValidationError
	if d, err := s.TimeoutDuration(); err != nil {
		errs = append(errs, ValidationError{Field: "settings.timeout", Message: err.Error()})
	} else if d < 0 {
		errs = append(errs, ValidationError{Field: "settings.timeout", Message: "must not be negative"})
	}
	if s.Concurrency < 0 {
		errs = append(errs, ValidationError{Field: "settings.concurrency", Message: "must not be negative"})
	}
	return errs
}

func validateComponent(index int, c Component) []ValidationError {
	field := func(name string) string {
		return fmt.Sprintf("components[%d].%s", index, name)
	}

	var errs []ValidationError
	if c.Name == "" {
		errs = append(errs, ValidationError{Field: field("name"), Message: "name is required"})
	}
	if c.InstallPath == "" {
		errs = append(errs, ValidationError{Field: field("install_path"), Message: "install_path is required"})
	}

	if err := c.Strategy.Validate(); err != nil {
		errs = append(errs, ValidationError{Field: field("strategy"), Message: err.Error()})
		return errs
	}

	if msg := validateSource(c.Source, c.Strategy.Default()); msg != "" {
		errs = append(errs, ValidationError{Field: field("source"), Message: msg})
	}
	return errs
}

// validateSource accepts http(s) URLs, and "owner/repo" shorthand for
// the github-api strategy.
func validateSource(source string, strategy types.Strategy) string {
	if source == "" {
		return "source is required"
	}
	if !strings.Contains(source, "://") {
		if strategy == types.StrategyGitHubAPI && strings.Count(strings.Trim(source, "/"), "/") == 1 {
			return ""
		}
		return fmt.Sprintf("source '%s' must be an http(s) URL", source)
	}

	u, err := url.Parse(source)
	if err != nil {
		return fmt.Sprintf("invalid source URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("source scheme '%s' is not supported (use http or https)", u.Scheme)
	}
	if u.Host == "" {
		return "source URL has no host"
	}
	return ""
}
