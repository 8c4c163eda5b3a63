package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lightfastai/buildhooks/internal/hooks"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate completion script",
	Long: `To load completions:

Bash:

  $ source <(buildhooks completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ buildhooks completion bash > /etc/bash_completion.d/buildhooks
  # macOS:
  $ buildhooks completion bash > $(brew --prefix)/etc/bash_completion.d/buildhooks

Zsh:

  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ buildhooks completion zsh > "${fpath[1]}/_buildhooks"

  # You will need to start a new shell for this setup to take effect.

Fish:

  $ buildhooks completion fish | source

  # To load completions for each session, execute once:
  $ buildhooks completion fish > ~/.config/fish/completions/buildhooks.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		default:
			return fmt.Errorf("unsupported shell type %q", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// phaseCompletion completes the first argument with the hook phases
func phaseCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	phases := make([]string, 0, len(hooks.Phases()))
	for _, p := range hooks.Phases() {
		phases = append(phases, p.String())
	}
	return phases, cobra.ShellCompDirectiveNoFileComp
}
