package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/adamancini/uplift/internal/config"
	"github.com/adamancini/uplift/internal/templates"
	"github.com/adamancini/uplift/internal/update"
)

// templateFetchTimeout bounds downloading a template URL.
const templateFetchTimeout = 30 * time.Second

func newInitCmd() *cobra.Command {
	var templateName string
	var outputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new Updatefile from a template",
		Long: `Create a new Updatefile from a built-in or custom template.

Available templates:
  minimal  - Empty component list
  scrape   - One add-on resolved from a tags page
  github   - Components resolved through the GitHub releases API

Examples:
  uplift init                          # Interactive mode
  uplift init --template=scrape        # Direct template selection
  uplift init --template=https://...   # Custom template URL
  uplift init --path ~/Updatefile      # Custom output location`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), templateName, outputPath, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "", "Template name or URL")
	cmd.Flags().StringVar(&outputPath, "path", "", "Output path for the Updatefile")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing Updatefile")

	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit executes the init workflow.
func runInit(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, templateName, outputPath string, force bool) error {
	reader := bufio.NewReader(stdin)

	if outputPath == "" {
		outputPath = defaultUpdatefilePath()
	}
	outputPath, err := homedir.Expand(outputPath)
	if err != nil {
		return fmt.Errorf("failed to expand %s: %w", outputPath, err)
	}

	if _, err := os.Stat(outputPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "Updatefile already exists at %s\n", outputPath)
		_, _ = fmt.Fprintf(stdout, "Overwrite? [y/N]: ")
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	if templateName == "" {
		selected, err := selectTemplateInteractive(reader, stdout)
		if err != nil {
			return err
		}
		templateName = selected
	}

	var content []byte
	if strings.HasPrefix(templateName, "http://") || strings.HasPrefix(templateName, "https://") {
		content, err = fetchRemoteTemplate(ctx, templateName)
		if err != nil {
			return fmt.Errorf("failed to fetch template: %w", err)
		}
	} else {
		tmpl, err := templates.Get(templateName)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		content = tmpl.Content
	}

	if err := validateTemplateContent(content); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(outputPath), err)
	}
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write Updatefile: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "\nCreated %s\n", outputPath)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Edit the Updatefile to list your components")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'uplift check' to see available updates")
	_, _ = fmt.Fprintln(stdout, "  3. Run 'uplift install' to apply them")

	return nil
}

// selectTemplateInteractive shows an interactive menu for template selection.
func selectTemplateInteractive(reader *bufio.Reader, stdout io.Writer) (string, error) {
	templateList := templates.List()

	_, _ = fmt.Fprintln(stdout, "\nSelect an Updatefile template:")
	for i, name := range templateList {
		_, _ = fmt.Fprintf(stdout, "  %d. %-8s - %s\n", i+1, name, templates.GetDescription(name))
	}
	_, _ = fmt.Fprintf(stdout, "  %d. %-8s - Provide custom template URL\n", len(templateList)+1, "custom")
	_, _ = fmt.Fprintf(stdout, "\nSelect [1-%d]: ", len(templateList)+1)

	answer, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	answer = strings.TrimSpace(answer)

	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > len(templateList)+1 {
		return "", fmt.Errorf("invalid selection: %s", answer)
	}

	if num == len(templateList)+1 {
		_, _ = fmt.Fprint(stdout, "Enter template URL: ")
		url, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read URL: %w", err)
		}
		return strings.TrimSpace(url), nil
	}

	return templateList[num-1], nil
}

// fetchRemoteTemplate downloads a template from a URL.
func fetchRemoteTemplate(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, templateFetchTimeout)
	defer cancel()

	text, err := update.NewHTTPTransport(update.WithUserAgent("uplift/"+upliftVersion)).FetchText(ctx, url)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// validateTemplateContent checks that content loads as an Updatefile.
func validateTemplateContent(content []byte) error {
	tmpFile, err := os.CreateTemp("", "Updatefile-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	_, err = config.Load(tmpName)
	return err
}

// defaultUpdatefilePath returns the first search location.
func defaultUpdatefilePath() string {
	dirs, err := config.SearchDirs()
	if err != nil || len(dirs) == 0 {
		return "Updatefile"
	}
	return filepath.Join(dirs[0], "Updatefile")
}
