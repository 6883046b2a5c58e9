package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-weaver/pkg/il"
)

func TestLogger_WarnAtIncludesSequencePoint(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: DebugLevel, Stderr: &buf})
	l.colors = false

	sp := &il.SequencePoint{Document: "Widget.cs", StartLine: 12, StartColumn: 5}
	l.WarnAt(sp, "forward call has no receiver", "method", "Run")

	out := buf.String()
	assert.Contains(t, out, "WARN: Widget.cs(12,5): forward call has no receiver method=Run")
}

func TestLogger_JSONCarriesLocation(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: InfoLevel, Stderr: &buf, JSONOutput: true})

	l.ErrorAt(&il.SequencePoint{Document: "a.cs", StartLine: 3, StartColumn: 1}, "boom")
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "a.cs", entry["document"])
	assert.Equal(t, float64(3), entry["line"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"WARN", WarnLevel, true},
		{"", InfoLevel, true},
		{"loud", InfoLevel, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ok, err == nil)
	}
}
