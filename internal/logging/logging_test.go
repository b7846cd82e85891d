package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/photo-report/internal/config"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := New(config.LogConfig{Level: tt.level}, &bytes.Buffer{})
			if log.GetLevel() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, log.GetLevel())
			}
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "info", Format: "json"}, &buf)

	log.WithField("job_id", "abc").Info("Report finished")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["job_id"] != "abc" || line["msg"] != "Report finished" {
		t.Errorf("unexpected fields: %v", line)
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "info", Format: "text"}, &buf)

	log.WithField("job_id", "abc").Info("Report finished")

	if !strings.Contains(buf.String(), "job_id=abc") {
		t.Errorf("expected key=value output, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	if log.IsLevelEnabled(logrus.ErrorLevel) {
		t.Error("expected error level to be disabled")
	}
}
