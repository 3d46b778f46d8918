package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_StructuredEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Structured: true})

	log.Info().Str("port", "3000").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if line["message"] != "hello" || line["port"] != "3000" {
		t.Errorf("unexpected fields: %v", line)
	}
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer

	log := New(&buf, Options{Structured: true})
	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line emitted at info level: %s", buf.String())
	}

	log = New(&buf, Options{Debug: true, Structured: true})
	log.Debug().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug line missing: %s", buf.String())
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{})

	log.Info().Msg("console line")

	out := buf.String()
	if json.Valid([]byte(out)) {
		t.Errorf("console format should not be JSON: %s", out)
	}
	if !strings.Contains(out, "console line") {
		t.Errorf("message missing from output: %s", out)
	}
}
