package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/conduit/pkg/migration"
)

type fakeRunner struct {
	status  []migration.MigrationRecord
	ran     []string
	failOn  string
	statErr error
}

func (f *fakeRunner) GetStatus(context.Context, []migration.Migration) ([]migration.MigrationRecord, error) {
	return f.status, f.statErr
}

func (f *fakeRunner) Apply(_ context.Context, m migration.Migration, _ bool) error {
	return f.run("up:" + m.Version)
}

func (f *fakeRunner) Rollback(_ context.Context, m migration.Migration, _ bool) error {
	return f.run("down:" + m.Version)
}

func (f *fakeRunner) run(step string) error {
	if step == f.failOn {
		return errors.New("boom")
	}
	f.ran = append(f.ran, step)
	return nil
}

var migrations = []migration.Migration{
	{Version: "1", Name: "users"},
	{Version: "2", Name: "articles"},
	{Version: "3", Name: "social"},
}

func newRunner() *fakeRunner {
	return &fakeRunner{status: []migration.MigrationRecord{
		{Version: "1", Name: "users", Status: migration.StatusApplied},
		{Version: "2", Name: "articles", Status: migration.StatusPending},
		{Version: "3", Name: "social", Status: migration.StatusPending},
	}}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drive feeds msg to the model and then runs the returned commands until
// none produce a message the model handles.
func drive(t *testing.T, m MigrateModel, msg tea.Msg) MigrateModel {
	t.Helper()
	for msg != nil {
		next, cmd := m.Update(msg)
		m = next.(MigrateModel)
		msg = nil
		if cmd == nil {
			break
		}
		switch out := cmd().(type) {
		case migrationExecutedMsg, statusLoadedMsg, errorMsg:
			msg = out
		}
	}
	return m
}

func loaded(t *testing.T, action Action, r *fakeRunner) MigrateModel {
	t.Helper()
	m := NewMigrateModel(context.Background(), action, r, migrations)
	m = drive(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = drive(t, m, m.Init()())
	require.Len(t, m.status, 3)
	return m
}

func TestMigrateUp_QueuesOlderPending(t *testing.T) {
	r := newRunner()
	m := loaded(t, ActionUp, r)

	m.list.Select(2)
	m = drive(t, m, key("enter"))
	require.Equal(t, ModeConfirm, m.mode)
	require.Len(t, m.queue, 2)
	assert.Equal(t, "2", m.queue[0].Version)
	assert.Equal(t, "3", m.queue[1].Version)

	m = drive(t, m, key("left"))
	m = drive(t, m, key("enter"))
	assert.Equal(t, ModeComplete, m.mode)
	assert.Equal(t, []string{"up:2", "up:3"}, r.ran)
	assert.Equal(t, 2, m.progress.Current)
}

func TestMigrateUp_AppliedNotSelectable(t *testing.T) {
	m := loaded(t, ActionUp, newRunner())
	m.list.Select(0)
	m = drive(t, m, key("enter"))
	assert.Equal(t, ModeList, m.mode)
}

func TestMigrateDown_NewestFirst(t *testing.T) {
	r := newRunner()
	r.status[1].Status = migration.StatusApplied
	m := loaded(t, ActionDown, r)

	m.list.Select(0)
	m = drive(t, m, key("enter"))
	require.Len(t, m.queue, 2)

	m = drive(t, m, key("y"))
	m = drive(t, m, key("enter"))
	assert.Equal(t, ModeComplete, m.mode)
	assert.Equal(t, []string{"down:2", "down:1"}, r.ran)
}

func TestMigrate_DeclineReturnsToList(t *testing.T) {
	r := newRunner()
	m := loaded(t, ActionUp, r)
	m.list.Select(1)
	m = drive(t, m, key("enter"))
	require.Equal(t, ModeConfirm, m.mode)

	m = drive(t, m, key("enter")) // No is preselected
	assert.Equal(t, ModeList, m.mode)
	assert.Empty(t, r.ran)
}

func TestMigrate_FailureStops(t *testing.T) {
	r := newRunner()
	r.failOn = "up:2"
	m := loaded(t, ActionUp, r)
	m.list.Select(2)
	m = drive(t, m, key("enter"))
	m = drive(t, m, key("left"))
	m = drive(t, m, key("enter"))

	assert.Equal(t, ModeError, m.mode)
	assert.EqualError(t, m.err, "boom")
	assert.Empty(t, r.ran)
	assert.Contains(t, m.View(), "Migration Failed")
}

func TestMigrate_StatusError(t *testing.T) {
	r := newRunner()
	r.statErr = errors.New("no database")
	m := NewMigrateModel(context.Background(), ActionUp, r, migrations)
	m = drive(t, m, m.Init()())
	assert.Equal(t, ModeError, m.mode)
	assert.ErrorContains(t, m.err, "no database")
}

func TestLogView_KeepsLatest(t *testing.T) {
	l := NewLogView(2)
	l.AddLog("a")
	l.AddLog("b")
	l.AddLog("c")
	assert.Equal(t, []string{"b", "c"}, l.Logs)
}
