package popup

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/pterm/pterm"
	"github.com/tidwall/pretty"
	"golang.org/x/term"
)

var (
	successBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)

	errorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Foreground(lipgloss.Color("9")).
			Padding(0, 1)
)

// TerminalDisplay renders the response region to a terminal or any writer.
type TerminalDisplay struct {
	Out io.Writer
	// Raw prints only final content, one line per settled submit.
	Raw bool
	// Pretty indents the JSON shown when the reply had no response field.
	Pretty bool
	// Spinner animates the pending phase instead of printing a static line.
	Spinner bool
	// Width caps the response box. Zero uses the terminal width, if any.
	Width int

	mu      sync.Mutex
	spinner *pterm.SpinnerPrinter
}

// NewTerminalDisplay returns a display writing to out.
func NewTerminalDisplay(out io.Writer) *TerminalDisplay {
	if out == nil {
		out = os.Stdout
	}
	return &TerminalDisplay{Out: out}
}

// Show implements Display.
func (d *TerminalDisplay) Show(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopSpinner()

	switch s.Phase {
	case Hidden:
		return
	case Pending:
		if d.Raw {
			return
		}
		if d.Spinner {
			if sp, err := pterm.DefaultSpinner.WithWriter(d.Out).WithRemoveWhenDone(true).Start(s.Content); err == nil {
				d.spinner = sp
				return
			}
		}
		pterm.Info.WithWriter(d.Out).Println(s.Content)
	case Success:
		d.render(successBox, d.successText(s))
	case Failed:
		d.render(errorBox, s.Content)
	}
}

func (d *TerminalDisplay) successText(s State) string {
	if d.Pretty && s.Result != nil && !s.Result.HasResponse && len(s.Result.Raw) > 0 {
		return strings.TrimRight(string(pretty.Pretty(s.Result.Raw)), "\n")
	}
	return s.Content
}

func (d *TerminalDisplay) render(style lipgloss.Style, content string) {
	if d.Raw {
		fmt.Fprintln(d.Out, content)
		return
	}
	if w := d.width(); w > 4 {
		style = style.Width(w - 2)
	}
	fmt.Fprintln(d.Out, style.Render(content))
}

func (d *TerminalDisplay) width() int {
	if d.Width > 0 {
		return d.Width
	}
	f, ok := d.Out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func (d *TerminalDisplay) stopSpinner() {
	if d.spinner != nil {
		_ = d.spinner.Stop()
		d.spinner = nil
	}
}

// TerminalNotifier prints alerts as error lines.
type TerminalNotifier struct {
	Out io.Writer
}

// Alert implements Notifier.
func (n TerminalNotifier) Alert(msg string) {
	out := n.Out
	if out == nil {
		out = os.Stderr
	}
	pterm.Error.WithWriter(out).Println(msg)
}
