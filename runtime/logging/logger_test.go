package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerAttachesIdentity(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, Options{App: "demo", Component: "gateway"}, slog.LevelInfo)
	logger := slog.New(h)

	logger.Info("event dispatched", "endpoint", "ping")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("not JSON: %v\n%s", err, buf.String())
	}
	if record["app"] != "demo" {
		t.Errorf("app = %v", record["app"])
	}
	if record["component"] != "gateway" {
		t.Errorf("component = %v", record["component"])
	}
	if record["endpoint"] != "ping" {
		t.Errorf("endpoint = %v", record["endpoint"])
	}
	if record["msg"] != "event dispatched" {
		t.Errorf("msg = %v", record["msg"])
	}
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, Options{}, slog.LevelWarn)
	logger := slog.New(h)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered: %s", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn record should pass")
	}
}

func TestHandlerWithAttrsDoesNotLeakBetweenLoggers(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, Options{App: "demo"}, slog.LevelInfo)

	derived := slog.New(h.WithAttrs([]slog.Attr{slog.String("scope", "x")}))
	base := slog.New(h)

	base.Info("plain")
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatal(err)
	}
	if _, ok := record["scope"]; ok {
		t.Error("derived attr leaked into base handler")
	}

	buf.Reset()
	derived.Info("scoped")
	record = map[string]any{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatal(err)
	}
	if record["scope"] != "x" {
		t.Errorf("scope = %v", record["scope"])
	}
}
