package output

import (
	"bytes"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestLines(t *testing.T) {
	buf := capture(t)

	Success("applied %d migration(s)", 2)
	Warning("no migrations found")
	Error("failed: %s", "boom")
	Info("nothing to do")
	Item("pending", "%s - %s", "20240101000000", "initial")

	out := buf.String()
	for _, want := range []string{
		"applied 2 migration(s)\n",
		"no migrations found\n",
		"failed: boom\n",
		"nothing to do\n",
		"20240101000000 - initial\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "\n"); n != 5 {
		t.Errorf("expected 5 lines, got %d", n)
	}
}

func TestSection(t *testing.T) {
	buf := capture(t)
	Section("Applying")
	if !strings.Contains(buf.String(), "Applying") || !strings.Contains(buf.String(), "════════") {
		t.Errorf("unexpected section header: %q", buf.String())
	}
}

func TestStatusIcon(t *testing.T) {
	for _, status := range []string{"applied", "pending", "failed", "running", "other"} {
		if StatusIcon(status) == "" {
			t.Errorf("StatusIcon(%q) is empty", status)
		}
	}
}
