package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ragassist/cli/internal/popup"
	"github.com/ragassist/cli/pkg/util"
)

var sendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Send text to the processing server",
	Long: `Send a single piece of text to the processing server and print the response.

The text can be provided as:
- Command line arguments
- From stdin (piped input)
- From a file (using --file)

Blank input is rejected before anything is sent. For a longer session,
use 'ragassist popup' instead.`,
	Example: `  # Send text as arguments
  ragassist send "What did I save about RAG?"

  # Pipe text from stdin
  pbpaste | ragassist send

  # Read text from a file
  ragassist send -f question.txt

  # Output as JSON for scripting
  ragassist send "hello" --json

  # Open the top source link from the answer
  ragassist send "vector search intro" --open`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringP("file", "f", "", "Read text from file")
	sendCmd.Flags().Bool("json", false, "Output the result as JSON")
	sendCmd.Flags().Bool("raw", false, "Output the response without formatting")
	sendCmd.Flags().Bool("pretty", false, "Indent the reply when it has no response field")
	sendCmd.Flags().Bool("open", false, "Open the first URL in the response in your browser")
}

// SendInput holds the parsed flags of the send command.
type SendInput struct {
	Args   []string
	File   string
	JSON   bool
	Raw    bool
	Pretty bool
	Open   bool
}

// SendOutput is the --json envelope.
type SendOutput struct {
	Response string          `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

// SendCmd runs one submit through a popup controller.
type SendCmd struct {
	processor popup.Processor
	overlap   popup.OverlapPolicy
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	openURL   func(string) error
}

// Send validates and submits the input, then renders the outcome.
func (s SendCmd) Send(ctx context.Context, in SendInput) error {
	if in.JSON && in.Raw {
		return fmt.Errorf("--json and --raw cannot be used together")
	}

	text, err := s.readInput(in)
	if err != nil {
		return err
	}

	var display popup.Display
	if !in.JSON {
		d := popup.NewTerminalDisplay(s.stdout)
		d.Raw = in.Raw
		d.Pretty = in.Pretty
		d.Spinner = !in.Raw && isTerminal(s.stdout)
		display = d
	}

	ctrl := popup.New(s.processor, display, popup.TerminalNotifier{Out: s.stderr},
		popup.WithOverlapPolicy(s.overlap))

	if err := ctrl.Submit(ctx, text); err != nil {
		var vErr *popup.ValidationError
		if errors.As(err, &vErr) {
			return fmt.Errorf("no text provided. Provide text as arguments, via stdin, or with --file")
		}
		return err
	}

	st := ctrl.State()

	if in.JSON {
		out := SendOutput{}
		switch st.Phase {
		case popup.Success:
			out.Response = st.Content
			if st.Result != nil && len(st.Result.Raw) > 0 {
				out.Body = json.RawMessage(st.Result.Raw)
			}
		case popup.Failed:
			out.Error = st.Content
		}
		if err := util.PrintJSON(s.stdout, out); err != nil {
			return err
		}
	}

	if st.Phase == popup.Failed {
		return fmt.Errorf("request failed: %w", st.Err)
	}

	if in.Open {
		s.open(st.Content, in)
	}
	return nil
}

func (s SendCmd) open(content string, in SendInput) {
	link, ok := util.FirstURL(content)
	quiet := in.JSON || in.Raw
	if !ok {
		if !quiet {
			pterm.Warning.WithWriter(s.stderr).Println("No URL found in the response")
		}
		return
	}
	if !quiet {
		pterm.Info.WithWriter(s.stderr).Printf("Opening %s\n", link)
	}
	if err := s.openURL(link); err != nil {
		pterm.Warning.WithWriter(s.stderr).Printf("Could not open browser: %v\n", err)
	}
}

// readInput collects text from arguments, a file, or piped stdin, in that order.
// It does not trim: validation belongs to the controller.
func (s SendCmd) readInput(in SendInput) (string, error) {
	if len(in.Args) > 0 {
		return strings.Join(in.Args, " "), nil
	}
	if in.File != "" {
		content, err := os.ReadFile(in.File)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), nil
	}
	if s.stdin != nil && !isTerminal(s.stdin) {
		content, err := io.ReadAll(s.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(content), nil
	}
	return "", nil
}

// isTerminal reports whether v is an *os.File attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg := getConfig(cmd)
	filePath, _ := cmd.Flags().GetString("file")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	rawOutput, _ := cmd.Flags().GetBool("raw")
	prettyOutput, _ := cmd.Flags().GetBool("pretty")
	openLink, _ := cmd.Flags().GetBool("open")

	s := SendCmd{
		processor: newProcessClient(cfg),
		overlap:   popup.OverlapPolicy(cfg.Overlap),
		stdin:     cmd.InOrStdin(),
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
		openURL:   browser.OpenURL,
	}
	return s.Send(cmd.Context(), SendInput{
		Args:   args,
		File:   filePath,
		JSON:   jsonOutput,
		Raw:    rawOutput,
		Pretty: prettyOutput,
		Open:   openLink,
	})
}
