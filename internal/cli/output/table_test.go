package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTableRender(t *testing.T) {
	table := &Table{}
	table.SetHeaders("USERNAME", "LAST_ACTIVITY")
	table.AddRow("alice", "2026-03-14 09:26")
	table.AddRow("bob", "-")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"USERNAME", "LAST_ACTIVITY", "alice", "bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestTableNoHeaders(t *testing.T) {
	table := &Table{Headers: []string{"A"}, Rows: [][]string{{"x"}}}

	var buf bytes.Buffer
	if err := table.RenderWithOptions(&buf, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "A") {
		t.Errorf("expected headers suppressed, got %q", buf.String())
	}
}

func TestTableFormatterSliceOfStructs(t *testing.T) {
	type row struct {
		Username string    `json:"username"`
		Synced   int       `json:"synced"`
		LastSeen time.Time `json:"last_seen"`
	}

	data := []row{
		{Username: "alice", Synced: 3, LastSeen: time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)},
		{Username: "bob"},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"USERNAME", "SYNCED", "LAST_SEEN", "alice", "2026-01-02 15:04"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
	// Zero time renders as a dash.
	if !strings.Contains(out, "-") {
		t.Errorf("expected dash for zero value, got %q", out)
	}
}

func TestTableFormatterStruct(t *testing.T) {
	data := struct {
		Users uint64 `json:"users"`
		Dir   string `json:"dir"`
	}{Users: 7, Dir: "/var/lib/korrosync"}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"FIELD", "users", "7", "/var/lib/korrosync"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestTableFormatterFallback(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "42" {
		t.Errorf("expected JSON fallback, got %q", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}
	if err := f.Format(&buf, map[string]string{"username": "alice"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"username": "alice"`) {
		t.Errorf("expected indented JSON, got %q", buf.String())
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("expected JSON formatter")
	}
	if _, ok := NewFormatter(FormatTable).(*TableFormatter); !ok {
		t.Error("expected table formatter")
	}
	if _, ok := NewFormatter("bogus").(*TableFormatter); !ok {
		t.Error("expected table formatter fallback")
	}
}
