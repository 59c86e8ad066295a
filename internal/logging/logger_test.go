package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hearing-go/internal/config"
)

func TestInitWritesPerLevelFiles(t *testing.T) {
	dir := t.TempDir()
	log, err := Init(config.LoggingConfig{Directory: dir, Level: "error", MaxSize: 1, MaxBackups: 1, MaxAge: 1})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	log.Named("test").Warn("careful")
	_ = log.Sync()

	name := filepath.Join(dir, time.Now().Format("2006-01-02")+"-warn.log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	if !strings.Contains(string(data), `"message":"careful"`) || !strings.Contains(string(data), `"logger":"test"`) {
		t.Fatalf("unexpected log line %s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, time.Now().Format("2006-01-02")+"-info.log")); err == nil {
		t.Error("info file must not receive a warning")
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	if _, err := Init(config.LoggingConfig{Directory: t.TempDir(), Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
