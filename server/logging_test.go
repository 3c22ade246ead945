package server_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/botrelay/server"
)

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botrelay.log")
	logger, closer, err := server.NewLogger(server.LogConfig{
		Level:     "info",
		Format:    "json",
		File:      path,
		MaxSizeMB: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("visible", "username", "my_bot")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"visible"`) || !strings.Contains(out, `"username":"my_bot"`) {
		t.Errorf("unexpected log output: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	if _, _, err := server.NewLogger(server.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, _, err := server.NewLogger(server.LogConfig{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
