// Package output prints styled status lines for the conduit commands.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Out receives everything this package prints.
var Out io.Writer = os.Stdout

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

func line(icon string, style lipgloss.Style, format string, args ...any) {
	_, _ = fmt.Fprintf(Out, "%s %s\n", style.Render(icon), fmt.Sprintf(format, args...))
}

// Success prints a success message
func Success(format string, args ...any) { line("✓", successStyle, format, args...) }

// Warning prints a warning message
func Warning(format string, args ...any) { line("⚠", warningStyle, format, args...) }

// Error prints an error message
func Error(format string, args ...any) { line("✗", errorStyle, format, args...) }

// Info prints an info message
func Info(format string, args ...any) { line("ℹ", infoStyle, format, args...) }

// Muted prints a muted message
func Muted(format string, args ...any) {
	_, _ = fmt.Fprintln(Out, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Section prints a section header
func Section(title string) {
	_, _ = fmt.Fprintf(Out, "\n%s\n%s\n\n", primaryStyle.Render(title),
		mutedStyle.Render(strings.Repeat("═", lipgloss.Width(title))))
}

// Item prints an indented list entry with a status icon.
func Item(status, format string, args ...any) {
	_, _ = fmt.Fprintf(Out, "  %s %s\n", StatusIcon(status), fmt.Sprintf(format, args...))
}

// StatusIcon returns a colored status icon
func StatusIcon(status string) string {
	switch status {
	case "applied", "ok":
		return successStyle.Render("✓")
	case "pending":
		return warningStyle.Render("○")
	case "failed", "violation":
		return errorStyle.Render("✗")
	case "running":
		return infoStyle.Render("◉")
	default:
		return mutedStyle.Render("•")
	}
}
