package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	cases := []struct {
		name      string
		level     string
		wantDebug bool
	}{
		{"default is info", "", false},
		{"debug", "debug", true},
		{"unknown falls back to info", "loud", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(Config{Level: tc.level}, &buf)
			log.Debug().Msg("debug line")
			log.Info().Str("auction_id", "a1").Msg("info line")

			lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
			wantLines := 1
			if tc.wantDebug {
				wantLines = 2
			}
			if len(lines) != wantLines {
				t.Fatalf("expected %d lines, got %d: %s", wantLines, len(lines), buf.String())
			}

			var entry map[string]any
			if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if entry["service"] != "clawbid" || entry["auction_id"] != "a1" {
				t.Fatalf("unexpected entry %v", entry)
			}
		})
	}
}
