package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoad_ReaderOnlyConfig(t *testing.T) {
	cfgPath := writeConfig(t, `
reader:
  index: 0
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReaderIndex() != 0 {
		t.Errorf("ReaderIndex() = %d, want 0", cfg.ReaderIndex())
	}
	if cfg.HasDBAKeys() {
		t.Error("HasDBAKeys() = true, want false for a reader-only config")
	}
}

func TestLoad_NoReaderIndexMeansAuto(t *testing.T) {
	cfgPath := writeConfig(t, `
dba:
  document_number: "L898902C<"
  date_of_birth: "690806"
  date_of_expiry: "940623"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReaderIndex() != -1 {
		t.Errorf("ReaderIndex() = %d, want -1 (auto)", cfg.ReaderIndex())
	}
	if !cfg.HasDBAKeys() {
		t.Error("HasDBAKeys() = false, want true")
	}
}

func TestLoad_RejectsPartialDBAGroup(t *testing.T) {
	cfgPath := writeConfig(t, `
dba:
  document_number: "L898902C<"
`)
	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("expected error for a partially specified dba group")
	}
}

func TestLoad_RejectsMalformedDate(t *testing.T) {
	cfgPath := writeConfig(t, `
dba:
  document_number: "L898902C<"
  date_of_birth: "1990-08-06"
  date_of_expiry: "940623"
`)
	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("expected error for a non-YYMMDD date")
	}
}

func TestLoad_RejectsNegativeReaderIndex(t *testing.T) {
	cfgPath := writeConfig(t, `
reader:
  index: -1
`)
	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("expected error for negative reader index")
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	cfgPath := writeConfig(t, `
reader:
  index: 0
unexpected_field: true
`)
	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("expected error for an unknown top-level field")
	}
}
