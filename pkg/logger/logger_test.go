package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesToFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	if err := Init(Config{Level: "debug", Format: "json", OutputPaths: []string{path}}); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(func() { _ = Sync() })

	Named("poller").Debug("status refreshed", "generation", 3)
	if err := Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, `"component":"poller"`) {
		t.Fatalf("expected component attribute, got %s", text)
	}
	if !strings.Contains(text, "status refreshed") {
		t.Fatalf("expected message, got %s", text)
	}
}

func TestAuditRequiresPath(t *testing.T) {
	err := Init(Config{OutputPaths: []string{"discard"}, Audit: AuditConfig{Enabled: true}})
	if err == nil {
		t.Fatal("expected error when audit path is empty")
	}
}

func TestAuditWritesThroughRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit", "writes.log")

	err := Init(Config{
		OutputPaths: []string{"discard"},
		Audit:       AuditConfig{Enabled: true, Path: path, MaxSizeMB: 1},
	})
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(func() { _ = Sync() })

	Audit().Info("ticket purchased", "tx_hash", "0xabc")
	if err := Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(content), "0xabc") {
		t.Fatalf("audit entry missing: %s", content)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
