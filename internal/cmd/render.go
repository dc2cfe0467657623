package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Iron-Ham/claudelink/internal/output"
	"github.com/Iron-Ham/claudelink/internal/supervisor"
	"github.com/Iron-Ham/claudelink/internal/util"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns w's column count, or 0 when unknown.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// renderer prints captured lines and host messages. Output events arrive on
// pump goroutines, so every write is serialized.
type renderer struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
	width  int

	errStyle    lipgloss.Style
	noticeStyle lipgloss.Style
	failStyle   lipgloss.Style
	warnStyle   lipgloss.Style
	labelStyle  lipgloss.Style
}

func newRenderer(w io.Writer, styled bool, width int) *renderer {
	return &renderer{
		w:           w,
		styled:      styled,
		width:       width,
		errStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		noticeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		failStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warnStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		labelStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *renderer) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, s)
}

// line prints one captured line. Mode and thinking status lines are shown
// as notices.
func (r *renderer) line(l output.Line) {
	switch l.Kind {
	case output.KindMode:
		r.notice("mode: %s", l.Mode)
		return
	case output.KindThinking:
		state := "off"
		if l.Thinking {
			state = "on"
		}
		r.notice("thinking: %s", state)
		return
	}

	text := util.Plain(l.Text)
	if l.Stream == output.Stderr {
		text = r.style(r.errStyle, output.Stderr.Tag()) + " " + text
	}
	r.println(text)
}

// notice prints a host status message, cut to the terminal width.
func (r *renderer) notice(format string, args ...any) {
	msg := "● " + fmt.Sprintf(format, args...)
	r.println(util.FitWidth(r.style(r.noticeStyle, msg), r.width))
}

func (r *renderer) failure(msg string) {
	r.println(r.style(r.failStyle, "✗ "+msg))
}

func (r *renderer) warning(msg string) {
	r.println(r.style(r.warnStyle, "! "+msg))
}

func (r *renderer) info(info supervisor.Info) {
	field := func(name string, value any) {
		r.println(util.FitWidth(r.style(r.labelStyle, fmt.Sprintf("%-10s", name))+fmt.Sprint(value), r.width))
	}

	field("state", info.State)
	if info.SessionID == "" {
		return
	}
	field("session", info.SessionID)
	field("run", info.RunID)
	field("pid", info.PID)
	if info.WorkerPID != info.PID {
		field("worker", info.WorkerPID)
	}
	field("program", info.Program)
	field("visible", info.Visible)
	field("started", info.StartedAt.Format("15:04:05"))
	if info.LogPath != "" {
		field("log", info.LogPath)
	}
	if info.Exited {
		status := info.ExitStatus
		if status == "" {
			status = "exit status 0"
		}
		field("exited", status)
	}
}

func (r *renderer) snapshot(stdout, stderr []string) {
	if len(stdout)+len(stderr) == 0 {
		r.notice("no output captured")
		return
	}
	for _, l := range stdout {
		r.println(util.Plain(l))
	}
	for _, l := range stderr {
		r.println(r.style(r.errStyle, output.Stderr.Tag()) + " " + util.Plain(l))
	}
}
