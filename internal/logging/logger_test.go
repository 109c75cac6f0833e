package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultLevel(t *testing.T) {
	logger := New("info")
	if logger.Logger.Level != logrus.InfoLevel {
		t.Errorf("expected log level Info, got %v", logger.Logger.Level)
	}
}

func TestNewLevels(t *testing.T) {
	testCases := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"DEBUG", logrus.DebugLevel},
		{"invalid", logrus.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			logger := New(tc.level)
			if logger.Logger.Level != tc.expected {
				t.Errorf("level %s: got %v, want %v", tc.level, logger.Logger.Level, tc.expected)
			}
		})
	}
}

func TestLoggerOutputIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info")
	logger.Logger.SetOutput(&buf)

	logger.Info("bring-up started", "interface", "eth0")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if entry["msg"] != "bring-up started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "bring-up started")
	}
	if entry["interface"] != "eth0" {
		t.Errorf("interface field = %v, want eth0", entry["interface"])
	}
	if entry["component"] != "xdpcore" {
		t.Errorf("component field = %v, want xdpcore", entry["component"])
	}
}

func TestWithFieldsChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info")
	logger.Logger.SetOutput(&buf)

	scoped := logger.WithFields(map[string]interface{}{"queue_id": 2})
	scoped.Info("populated fill ring")

	if !strings.Contains(buf.String(), `"queue_id":2`) {
		t.Errorf("expected queue_id field in output: %s", buf.String())
	}
}

func TestLogBringUpStepSuccessAndFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug")
	logger.Logger.SetOutput(&buf)

	logger.LogBringUpStep("bind", "eth0", 3, nil)
	if !strings.Contains(buf.String(), `"level":"debug"`) {
		t.Errorf("successful step should log at debug: %s", buf.String())
	}

	buf.Reset()
	logger.LogBringUpStep("bind", "eth0", 3, errors.New("operation not permitted"))
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("failed step should log at error: %s", buf.String())
	}
}

func TestLogDataplaneShortCount(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn")
	logger.Logger.SetOutput(&buf)

	logger.LogDataplaneShortCount("send", "eth0", 1, 64, 10)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["requested"] != float64(64) || entry["got"] != float64(10) {
		t.Errorf("unexpected fields: %+v", entry)
	}
}
