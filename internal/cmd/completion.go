package cmd

import (
	"github.com/spf13/cobra"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for uplift.

To load completions:

Bash:
  $ source <(uplift completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ uplift completion bash > /etc/bash_completion.d/uplift
  # macOS:
  $ uplift completion bash > $(brew --prefix)/etc/bash_completion.d/uplift

Zsh:
  $ uplift completion zsh > "${fpath[1]}/_uplift"

Fish:
  $ uplift completion fish > ~/.config/fish/completions/uplift.fish

PowerShell:
  PS> uplift completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
