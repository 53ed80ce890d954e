package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/RahimMirani/scheduling-agent/internal/config"
	"github.com/RahimMirani/scheduling-agent/internal/googleauth"
)

const replPrompt = "you> "

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the scheduling assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ag, auth, err := buildApp(cfg)
			if err != nil {
				return err
			}

			if !auth.IsAuthenticated(cmd.Context()) {
				fmt.Fprintf(
					cmd.ErrOrStderr(),
					"Not signed in with Google. Run `schedagent serve` and open http://%s:%d to sign in, then try again.\n",
					cfg.Server.Host, cfg.Server.Port,
				)
				return errors.New("google authentication required")
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          replPrompt,
				HistoryFile:     filepath.Join(os.TempDir(), ".schedagent_history"),
				HistoryLimit:    200,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Type a request, /reset to clear the conversation, or /exit to quit.")

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}

				line = strings.TrimSpace(line)
				switch line {
				case "":
					continue
				case "/exit", "/quit":
					return nil
				case "/reset":
					ag.Reset()
					fmt.Fprintln(out, "Conversation cleared.")
					continue
				}

				reply, err := ag.HandleMessage(cmd.Context(), line)
				if err != nil {
					if errors.Is(err, googleauth.ErrAuthRequired) {
						fmt.Fprintln(out, "Google sign-in expired. Run `schedagent serve` and sign in again.")
						continue
					}
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "assistant> %s\n\n", reply)
			}
		},
	}
}
