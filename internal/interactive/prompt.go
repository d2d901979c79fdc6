// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/adamancini/uplift/internal/update"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes  Response = iota // Install this update
	ResponseNo                   // Skip this update
	ResponseAll                  // Approve all remaining updates
	ResponseQuit                 // Abort interactive mode
)

// Prompter handles interactive prompts for install confirmation.
type Prompter struct {
	out        io.Writer
	scanner    *bufio.Scanner
	approveAll bool
}

// Selection records which components were approved, keyed by name.
type Selection map[string]bool

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt displays a question and reads the response.
func (p *Prompter) prompt(format string, args ...any) Response {
	if p.approveAll {
		return ResponseYes
	}

	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n/a/q] ")

	if !p.scanner.Scan() {
		return ResponseQuit
	}

	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	case "a", "all":
		p.approveAll = true
		return ResponseYes
	case "q", "quit":
		return ResponseQuit
	default:
		_, _ = fmt.Fprintln(p.out, "Invalid response, skipping.")
		return ResponseNo
	}
}

// Confirm asks a yes/no question. EOF and anything but yes mean no.
func (p *Prompter) Confirm(format string, args ...any) bool {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n] ")
	if !p.scanner.Scan() {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}

// PromptForUpdates asks about each available update in turn, then for
// a final confirmation. It returns the selection and whether to proceed.
func (p *Prompter) PromptForUpdates(statuses []update.UpdateStatus) (Selection, bool) {
	selection := make(Selection)
	approved, skipped := 0, 0

	for _, s := range statuses {
		if !s.Available {
			continue
		}
		_, _ = fmt.Fprintf(p.out, "  ~ %s %s -> %s (%s)\n", s.ComponentName, s.InstalledVersion, s.ReleaseLabel, s.ArtifactKind)

		switch p.prompt("    -> Install %s %s?", s.ComponentName, s.ReleaseLabel) {
		case ResponseQuit:
			_, _ = fmt.Fprintln(p.out, "\nAborted.")
			return nil, false
		case ResponseNo:
			_, _ = fmt.Fprintln(p.out, "    - Skipped")
			selection[s.ComponentName] = false
			skipped++
		default:
			selection[s.ComponentName] = true
			approved++
		}
	}

	_, _ = fmt.Fprintln(p.out, "\nSummary:")
	_, _ = fmt.Fprintf(p.out, "  Will install: %d update(s)\n", approved)
	if skipped > 0 {
		_, _ = fmt.Fprintf(p.out, "  Skipped: %d\n", skipped)
	}

	if approved == 0 {
		_, _ = fmt.Fprintln(p.out, "No updates selected.")
		return selection, false
	}

	if !p.Confirm("\nProceed with install?") {
		_, _ = fmt.Fprintln(p.out, "Aborted.")
		return selection, false
	}
	return selection, true
}

// FilterBySelection returns the statuses whose component was approved,
// preserving order.
func FilterBySelection(statuses []update.UpdateStatus, selection Selection) []update.UpdateStatus {
	filtered := make([]update.UpdateStatus, 0, len(statuses))
	for _, s := range statuses {
		if selection[s.ComponentName] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
