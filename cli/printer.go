// Tool event output.
//
// Information Hiding:
// - Terminal width detection hidden
// - Preview truncation hidden

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/richinex/smith/tools"
)

const defaultWidth = 80

// TerminalWidth returns the column count of f, or 80 when f is not a terminal.
func TerminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Printer writes one line per tool event.
type Printer struct {
	out     io.Writer
	width   int
	verbose bool
	mu      sync.Mutex
}

// NewPrinter creates a printer truncating lines to width columns.
func NewPrinter(out io.Writer, width int, verbose bool) *Printer {
	if width <= 0 {
		width = defaultWidth
	}
	return &Printer{out: out, width: width, verbose: verbose}
}

// HandleToolEvent implements tools.EventHandler.
func (p *Printer) HandleToolEvent(ev tools.ToolEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case tools.EventStarted:
		p.line("→ %s %s", ev.Name, oneLine(string(ev.Input)))
	case tools.EventCompleted:
		if ev.Result == nil {
			p.line("✓ %s", ev.Name)
			return
		}
		p.line("✓ %s (%d bytes)", ev.Name, len(ev.Result.Output))
		if p.verbose {
			p.line("  %s", oneLine(ev.Result.Output))
		}
	case tools.EventFailed:
		switch {
		case ev.Cancelled:
			p.line("✗ %s cancelled", ev.Name)
		case ev.Err != nil:
			p.line("✗ %s: %s", ev.Name, oneLine(ev.Err.Error()))
		default:
			p.line("✗ %s failed", ev.Name)
		}
	}
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintln(p.out, truncate(fmt.Sprintf(format, args...), p.width))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

var _ tools.EventHandler = (*Printer)(nil)
