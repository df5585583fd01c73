package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/conduit/pkg/migration"
)

// ConfirmationDialog is a yes/no prompt. No is selected initially.
type ConfirmationDialog struct {
	Title       string
	Message     string
	YesSelected bool
}

// NewConfirmationDialog creates a new confirmation dialog
func NewConfirmationDialog(title, message string) ConfirmationDialog {
	return ConfirmationDialog{Title: title, Message: message}
}

// Update moves the selection. It reports whether enter was pressed.
func (d *ConfirmationDialog) Update(msg tea.KeyMsg) (decided bool) {
	switch msg.String() {
	case "left", "h", "y":
		d.YesSelected = true
	case "right", "l", "n":
		d.YesSelected = false
	case "enter":
		return true
	}
	return false
}

// View renders the confirmation dialog
func (d ConfirmationDialog) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yes, no := inactiveButtonStyle.Render("Yes"), activeButtonStyle.Render("No")
	if d.YesSelected {
		yes, no = activeButtonStyle.Render("Yes"), inactiveButtonStyle.Render("No")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yes, "  ", no))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "choose") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc", "back")))

	return boxStyle.Render(b.String())
}

// MigrationItem is one row of the migration list.
type MigrationItem struct {
	Record migration.MigrationRecord
}

func (i MigrationItem) FilterValue() string { return i.Record.Name }

func (i MigrationItem) Title() string {
	return fmt.Sprintf("%s %s - %s", FormatStatus(string(i.Record.Status)), i.Record.Version, i.Record.Name)
}

func (i MigrationItem) Description() string {
	switch {
	case i.Record.AppliedAt != nil:
		return mutedStyle.Render("Applied: " + i.Record.AppliedAt.Format("2006-01-02 15:04:05"))
	case i.Record.Error != nil:
		return dangerStyle.Render("Error: " + *i.Record.Error)
	default:
		return mutedStyle.Render("Not applied")
	}
}

// MigrationItemDelegate renders MigrationItems over two lines.
type MigrationItemDelegate struct{}

func (d MigrationItemDelegate) Height() int                             { return 2 }
func (d MigrationItemDelegate) Spacing() int                            { return 1 }
func (d MigrationItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d MigrationItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(MigrationItem)
	if !ok {
		return
	}
	if index == m.Index() {
		_, _ = fmt.Fprint(w, selectedItemStyle.Render("▸ "+i.Title()+"\n  "+i.Description()))
		return
	}
	_, _ = fmt.Fprint(w, unselectedItemStyle.Render("  "+i.Title()+"\n  "+i.Description()))
}

// ProgressView shows how many migrations of a batch have run.
type ProgressView struct {
	Current int
	Total   int
	Message string
}

// View renders the progress view
func (p ProgressView) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Migration Progress"))
	b.WriteString("\n\n")
	if p.Message != "" {
		b.WriteString(infoStyle.Render(p.Message))
		b.WriteString("\n\n")
	}
	b.WriteString(FormatProgressBar(p.Current, p.Total, 40))
	return boxStyle.Render(b.String())
}

// LogView keeps the last MaxLen entries.
type LogView struct {
	Logs   []string
	MaxLen int
}

// NewLogView creates a new log view
func NewLogView(maxLen int) LogView {
	return LogView{MaxLen: maxLen}
}

// AddLog adds a log entry
func (l *LogView) AddLog(entry string) {
	l.Logs = append(l.Logs, entry)
	if len(l.Logs) > l.MaxLen {
		l.Logs = l.Logs[len(l.Logs)-l.MaxLen:]
	}
}

// View renders the log view
func (l LogView) View() string {
	if len(l.Logs) == 0 {
		return mutedStyle.Render("No logs")
	}
	var b strings.Builder
	for _, entry := range l.Logs {
		b.WriteString(mutedStyle.Render("• "))
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return boxStyle.Render(b.String())
}
