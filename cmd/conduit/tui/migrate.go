package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/conduit/pkg/migration"
)

// Action is the direction the UI migrates in.
type Action string

const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
)

// Runner is the part of *migration.Executor the UI drives.
type Runner interface {
	GetStatus(ctx context.Context, migrations []migration.Migration) ([]migration.MigrationRecord, error)
	Apply(ctx context.Context, m migration.Migration, dryRun bool) error
	Rollback(ctx context.Context, m migration.Migration, dryRun bool) error
}

// MigrateMode represents the current mode of the migration UI
type MigrateMode int

const (
	ModeList MigrateMode = iota
	ModeConfirm
	ModeExecuting
	ModeComplete
	ModeError
)

// MigrateModel is the Bubbletea model for interactive migrations. Selecting
// a migration queues it together with every migration that must run
// before it: older pending ones going up, newer applied ones going down.
type MigrateModel struct {
	ctx        context.Context
	action     Action
	runner     Runner
	migrations []migration.Migration
	status     []migration.MigrationRecord

	mode         MigrateMode
	list         list.Model
	confirmation ConfirmationDialog
	progress     ProgressView
	logs         LogView
	queue        []migration.Migration
	err          error
	width        int
	height       int
}

// NewMigrateModel creates a new migration UI model
func NewMigrateModel(ctx context.Context, action Action, runner Runner, migrations []migration.Migration) MigrateModel {
	l := list.New(nil, MigrationItemDelegate{}, 0, 0)
	l.Title = "Database Migrations (" + string(action) + ")"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return MigrateModel{
		ctx:        ctx,
		action:     action,
		runner:     runner,
		migrations: migrations,
		mode:       ModeList,
		list:       l,
		logs:       NewLogView(10),
	}
}

type statusLoadedMsg struct {
	status []migration.MigrationRecord
}

type migrationExecutedMsg struct {
	version string
	err     error
}

type errorMsg struct {
	err error
}

// Init loads the migration status.
func (m MigrateModel) Init() tea.Cmd {
	return m.loadStatus()
}

func (m MigrateModel) loadStatus() tea.Cmd {
	return func() tea.Msg {
		status, err := m.runner.GetStatus(m.ctx, m.migrations)
		if err != nil {
			return errorMsg{err: fmt.Errorf("failed to get migration status: %w", err)}
		}
		return statusLoadedMsg{status: status}
	}
}

func (m MigrateModel) execute(mig migration.Migration) tea.Cmd {
	return func() tea.Msg {
		var err error
		if m.action == ActionUp {
			err = m.runner.Apply(m.ctx, mig, false)
		} else {
			err = m.runner.Rollback(m.ctx, mig, false)
		}
		return migrationExecutedMsg{version: mig.Version, err: err}
	}
}

func (m MigrateModel) indexOf(version string) int {
	for i, s := range m.status {
		if s.Version == version {
			return i
		}
	}
	return -1
}

// plan returns the migrations to run for the selected list index, or nil
// when the selection cannot be run in this direction.
func (m MigrateModel) plan(selected int) []migration.Migration {
	if selected < 0 || selected >= len(m.status) {
		return nil
	}
	runnable := func(s migration.MigrationStatus) bool {
		if m.action == ActionUp {
			return s != migration.StatusApplied
		}
		return s == migration.StatusApplied
	}
	if !runnable(m.status[selected].Status) {
		return nil
	}

	var queue []migration.Migration
	if m.action == ActionUp {
		for i := 0; i <= selected; i++ {
			if runnable(m.status[i].Status) {
				queue = append(queue, m.migrations[i])
			}
		}
		return queue
	}
	for i := len(m.status) - 1; i >= selected; i-- {
		if runnable(m.status[i].Status) {
			queue = append(queue, m.migrations[i])
		}
	}
	return queue
}

// Update handles messages
func (m MigrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case statusLoadedMsg:
		m.status = msg.status
		items := make([]list.Item, len(msg.status))
		for i, s := range msg.status {
			items[i] = MigrationItem{Record: s}
		}
		return m, m.list.SetItems(items)

	case migrationExecutedMsg:
		if msg.err != nil {
			m.mode = ModeError
			m.err = msg.err
			m.logs.AddLog(dangerStyle.Render("Failed: " + msg.version))
			return m, nil
		}
		m.logs.AddLog(successStyle.Render("✓ Completed: " + msg.version))
		m.progress.Current++
		if m.progress.Current >= m.progress.Total {
			m.mode = ModeComplete
			return m, m.loadStatus()
		}
		next := m.queue[m.progress.Current]
		m.progress.Message = fmt.Sprintf("Executing: %s - %s", next.Version, next.Name)
		return m, m.execute(next)

	case errorMsg:
		m.mode = ModeError
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeList:
			if m.list.FilterState() == list.Filtering {
				break
			}
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "enter", " ":
				item, ok := m.list.SelectedItem().(MigrationItem)
				if !ok {
					return m, nil
				}
				queue := m.plan(m.indexOf(item.Record.Version))
				if len(queue) == 0 {
					return m, nil
				}
				m.queue = queue
				names := make([]string, len(queue))
				for i, q := range queue {
					names[i] = q.Version + " - " + q.Name
				}
				m.confirmation = NewConfirmationDialog(
					fmt.Sprintf("Confirm Migration %s", strings.ToUpper(string(m.action))),
					fmt.Sprintf("Run %s on %d migration(s):\n%s", m.action, len(queue), strings.Join(names, "\n")),
				)
				m.mode = ModeConfirm
				return m, nil
			}

		case ModeConfirm:
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc", "q":
				m.mode = ModeList
				return m, nil
			}
			if !m.confirmation.Update(msg) {
				return m, nil
			}
			if !m.confirmation.YesSelected {
				m.mode = ModeList
				return m, nil
			}
			m.mode = ModeExecuting
			m.progress = ProgressView{
				Total:   len(m.queue),
				Message: fmt.Sprintf("Executing: %s - %s", m.queue[0].Version, m.queue[0].Name),
			}
			return m, m.execute(m.queue[0])

		case ModeComplete, ModeError:
			switch msg.String() {
			case "ctrl+c", "q", "enter":
				return m, tea.Quit
			}
		}
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI
func (m MigrateModel) View() string {
	center := func(s string) string {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
	}

	switch m.mode {
	case ModeList:
		help := helpStyle.Render(
			FormatKey("↑/↓", "navigate") + " • " +
				FormatKey("enter", string(m.action)) + " • " +
				FormatKey("/", "filter") + " • " +
				FormatKey("q", "quit"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)

	case ModeConfirm:
		return center(m.confirmation.View())

	case ModeExecuting:
		return center(lipgloss.JoinVertical(lipgloss.Left, m.progress.View(), "\n", m.logs.View()))

	case ModeComplete:
		return center(boxStyle.Render(
			titleStyle.Render("Migration Complete!") + "\n\n" +
				successStyle.Render(fmt.Sprintf("Successfully executed %d migration(s)", m.progress.Total)) + "\n\n" +
				helpStyle.Render(FormatKey("enter/q", "exit"))))

	case ModeError:
		return center(boxStyle.Render(
			titleStyle.Render("Migration Failed") + "\n\n" +
				errorStyle.Render(m.err.Error()) + "\n\n" +
				m.logs.View() + "\n" +
				helpStyle.Render(FormatKey("enter/q", "exit"))))
	}
	return "Unknown mode"
}

// RunMigrateUI starts the interactive migration UI
func RunMigrateUI(ctx context.Context, action Action, runner Runner, migrations []migration.Migration) error {
	p := tea.NewProgram(NewMigrateModel(ctx, action, runner, migrations), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
