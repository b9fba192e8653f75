package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ragassist/cli/internal/config"
	"github.com/ragassist/cli/internal/popup"
	"github.com/ragassist/cli/pkg/util"
)

var popupCmd = &cobra.Command{
	Use:     "popup",
	Aliases: []string{"chat"},
	Short:   "Interactive session with the processing server",
	Long: `Start an interactive session with the processing server.

Each line you enter is sent as one request and the answer replaces the
previous one. Blank lines are rejected without contacting the server.

Special commands:
  /quit, /exit  - Exit the session
  /clear        - Clear the terminal
  /status       - Show the endpoint and the state of the last request
  /help         - Show available commands`,
	Example: `  # Start a session against the default endpoint
  ragassist popup

  # Keep typing while earlier requests are still running
  ragassist popup --async

  # Abort the previous request whenever a new one starts
  ragassist popup --async --overlap cancel`,
	Args: cobra.NoArgs,
	RunE: runPopup,
}

func init() {
	popupCmd.Flags().Bool("async", false, "Do not wait for a response before reading the next line")
	popupCmd.Flags().String("overlap", config.DefaultOverlap, "What to do with a request still running when a new one starts (guard, cancel)")
	popupCmd.Flags().Bool("raw", false, "Print responses without formatting")
	popupCmd.Flags().Bool("pretty", false, "Indent replies that have no response field")
}

// PopupInput holds the parsed flags of the popup command.
type PopupInput struct {
	Async  bool
	Raw    bool
	Pretty bool
}

// PopupCmd is an interactive read-submit loop over a popup controller.
type PopupCmd struct {
	processor popup.Processor
	endpoint  string
	overlap   popup.OverlapPolicy
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer

	// interactive enables the prompt and spinner.
	interactive bool
}

// Run reads lines until EOF or /quit and submits each one.
func (p PopupCmd) Run(ctx context.Context, in PopupInput) error {
	interactive := p.interactive

	display := popup.NewTerminalDisplay(p.stdout)
	display.Raw = in.Raw
	display.Pretty = in.Pretty
	display.Spinner = interactive && !in.Async && !in.Raw

	ctrl := popup.New(p.processor, display, popup.TerminalNotifier{Out: p.stderr},
		popup.WithOverlapPolicy(p.overlap))
	defer ctrl.Wait()

	if !in.Raw {
		p.printHeader(in)
	}

	scanner := bufio.NewScanner(p.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			pterm.Fprint(p.stdout, pterm.Cyan("> "))
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if cmd := strings.TrimSpace(line); strings.HasPrefix(cmd, "/") {
			handled, shouldExit := p.handleCommand(ctrl, cmd)
			if shouldExit {
				if !in.Raw {
					pterm.Info.WithWriter(p.stdout).Println("Goodbye!")
				}
				return nil
			}
			if handled {
				continue
			}
		}

		submit := lo.Ternary(in.Async, ctrl.SubmitAsync, ctrl.Submit)
		if err := submit(ctx, line); err != nil {
			var vErr *popup.ValidationError
			if !errors.As(err, &vErr) {
				return err
			}
			continue
		}
		if in.Async && !in.Raw {
			pterm.Info.WithWriter(p.stderr).Printf("sent: %s\n", util.Truncate(util.CollapseWhitespace(line), 60))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func (p PopupCmd) printHeader(in PopupInput) {
	out := p.stdout
	pterm.DefaultHeader.WithWriter(out).
		WithBackgroundStyle(pterm.NewStyle(pterm.BgBlue)).
		WithTextStyle(pterm.NewStyle(pterm.FgWhite)).
		Println("ragassist")
	pterm.Info.WithWriter(out).Printf("Endpoint: %s\n", p.endpoint)
	if in.Async {
		pterm.Info.WithWriter(out).Printf("Async mode, overlapping requests: %s\n", p.overlap)
	}
	pterm.Info.WithWriter(out).Println("Type your text and press Enter. Use /help for commands, /quit to exit.")
	pterm.Fprintln(out)
}

func (p PopupCmd) handleCommand(ctrl *popup.Controller, input string) (handled bool, shouldExit bool) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false, false
	}

	switch strings.ToLower(parts[0]) {
	case "/quit", "/exit", "/q":
		return true, true

	case "/clear":
		fmt.Fprint(p.stdout, "\033[H\033[2J")
		return true, false

	case "/status":
		st := ctrl.State()
		pterm.Info.WithWriter(p.stdout).Printf("Endpoint: %s\n", p.endpoint)
		pterm.Info.WithWriter(p.stdout).Printf("Last request: #%d %s\n", st.Submission, st.Phase)
		return true, false

	case "/help", "/?":
		out := p.stdout
		pterm.Fprintln(out)
		pterm.Info.WithWriter(out).Println("Available commands:")
		pterm.Fprintln(out, "  /quit, /exit  - Exit the session")
		pterm.Fprintln(out, "  /clear        - Clear the terminal")
		pterm.Fprintln(out, "  /status       - Show the endpoint and last request state")
		pterm.Fprintln(out, "  /help         - Show this help message")
		pterm.Fprintln(out)
		return true, false

	default:
		// Unknown slash commands are ordinary text.
		return false, false
	}
}

func runPopup(cmd *cobra.Command, args []string) error {
	cfg := getConfig(cmd)
	async, _ := cmd.Flags().GetBool("async")
	raw, _ := cmd.Flags().GetBool("raw")
	pretty, _ := cmd.Flags().GetBool("pretty")

	p := PopupCmd{
		processor: newProcessClient(cfg),
		endpoint:  cfg.Endpoint,
		overlap:   popup.OverlapPolicy(cfg.Overlap),
		stdin:     cmd.InOrStdin(),
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
	}
	p.interactive = isTerminal(p.stdin) && isTerminal(p.stdout)
	return p.Run(cmd.Context(), PopupInput{Async: async, Raw: raw, Pretty: pretty})
}
