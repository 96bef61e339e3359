package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, FormatJSON, false)
		logger.Info("hello", FileKey("host/1_processed.json"))

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
		}
		if entry[KeyFileKey] != "host/1_processed.json" {
			t.Errorf("file_key = %v, want host/1_processed.json", entry[KeyFileKey])
		}
	})

	t.Run("text default", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "something", false)
		logger.Info("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Errorf("expected text output, got %q", buf.String())
		}
	})

	t.Run("debug level", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, FormatText, false).Debug("hidden")
		if buf.Len() != 0 {
			t.Errorf("debug message should be dropped at info level, got %q", buf.String())
		}
		New(&buf, FormatText, true).Debug("shown")
		if !strings.Contains(buf.String(), "shown") {
			t.Errorf("debug message should be written with debug enabled, got %q", buf.String())
		}
	})
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, FormatText, false)

	WithComponent(WithOperation(base, "ingest.handle"), "worker").Info("x")
	out := buf.String()
	if !strings.Contains(out, "operation=ingest.handle") {
		t.Errorf("missing operation attribute in %q", out)
	}
	if !strings.Contains(out, "component=worker") {
		t.Errorf("missing component attribute in %q", out)
	}

	buf.Reset()
	WithTool(base, "availability_find_slots").Info("x")
	if !strings.Contains(buf.String(), "tool=availability_find_slots") {
		t.Errorf("missing tool attribute in %q", buf.String())
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"status", Status(StatusSuccess), KeyStatus, StatusSuccess},
		{"file key", FileKey("h/s.json"), KeyFileKey, "h/s.json"},
		{"event", EventID("E1"), KeyEventID, "E1"},
		{"group", GroupID("G1"), KeyGroupID, "G1"},
		{"host", HostID("H1"), KeyHostID, "H1"},
		{"stage", Stage("validating"), KeyStage, "validating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErr(t *testing.T) {
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Empty group, omitted by slog
	attr = Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		email    string
		wantLen  int
		hasValue bool
	}{
		{"jane@example.com", 21, true}, // "user:" + 16 hex chars
		{"attendee@corp.example", 21, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			result := AnonymizeEmail(tt.email)
			if tt.hasValue {
				if len(result) != tt.wantLen {
					t.Errorf("AnonymizeEmail(%q) length = %d, want %d", tt.email, len(result), tt.wantLen)
				}
				if !strings.HasPrefix(result, "user:") {
					t.Errorf("AnonymizeEmail(%q) should start with 'user:', got %q", tt.email, result)
				}
			} else if result != "" {
				t.Errorf("AnonymizeEmail(%q) = %q, want empty string", tt.email, result)
			}
		})
	}

	if AnonymizeEmail("test@example.com") != AnonymizeEmail(" Test@Example.com ") {
		t.Error("AnonymizeEmail should normalize case and whitespace")
	}
	if AnonymizeEmail("test@example.com") == AnonymizeEmail("other@example.com") {
		t.Error("Different emails should produce different hashes")
	}
}

func TestUserHash(t *testing.T) {
	attr := UserHash("jane@example.com")
	if attr.Key != KeyUserHash {
		t.Errorf("UserHash key = %q, want %q", attr.Key, KeyUserHash)
	}
	if len(attr.Value.String()) != 21 {
		t.Errorf("UserHash value length = %d, want 21", len(attr.Value.String()))
	}
}
