package terminal

import (
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer renders chat output to a terminal.
type Printer struct {
	out      io.Writer
	color    bool
	fragment lipgloss.Style
	notice   lipgloss.Style
	prompt   lipgloss.Style
}

// NewPrinter creates a Printer writing to out. Colour is only emitted when
// color is set and out is a terminal that supports it.
func NewPrinter(out io.Writer, color bool, fragmentColor string) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:   out,
		color: color,
		fragment: r.NewStyle().
			Foreground(lipgloss.Color(fragmentColor)).
			TabWidth(lipgloss.NoTabConversion),
		notice: r.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true),
		prompt: r.NewStyle().
			Bold(true),
	}
}

// Write renders reply fragments. Newlines are written as-is so multi-line
// fragments are never padded into a block. On failure the count covers the
// lines of b already written.
func (p *Printer) Write(b []byte) (int, error) {
	if !p.color {
		return p.out.Write(b)
	}

	done := 0
	for i, line := range strings.Split(string(b), "\n") {
		if i > 0 {
			if _, err := io.WriteString(p.out, "\n"); err != nil {
				return done, err
			}
			done++
		}
		if line != "" {
			if _, err := io.WriteString(p.out, p.fragment.Render(line)); err != nil {
				return done, err
			}
			done += len(line)
		}
	}
	return done, nil
}

// Notice prints an informational line.
func (p *Printer) Notice(msg string) {
	io.WriteString(p.out, p.style(p.notice, msg)+"\n")
}

// Prompt prints the input prompt without a newline.
func (p *Printer) Prompt(label string) {
	io.WriteString(p.out, p.style(p.prompt, label))
}

// Println prints an unstyled line.
func (p *Printer) Println(msg string) {
	io.WriteString(p.out, msg+"\n")
}

func (p *Printer) style(s lipgloss.Style, msg string) string {
	if !p.color {
		return msg
	}
	return s.Render(msg)
}

// Clear clears the terminal screen using the platform's clear command.
func Clear(out io.Writer) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/C", "cls")
	} else {
		cmd = exec.Command("clear")
	}
	cmd.Stdout = out
	return cmd.Run()
}
