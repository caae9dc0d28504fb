package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCLIOverrides(t *testing.T) {
	cfg := defaultFillConfig()
	cfg.Database = DatabaseConfig{Type: "mysql", DSN: "root@tcp(localhost:3306)/shop"}
	cfg.Workers = 4

	if err := rootCmd.ParseFlags([]string{"--rows", "7", "--no-jumble", "--strict"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if err := overrides.apply(rootCmd, &cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Rows != 7 {
		t.Errorf("Rows = %d, want 7", cfg.Rows)
	}
	if cfg.JumbleFKs {
		t.Error("JumbleFKs = true, want false")
	}
	if !cfg.StrictInsert {
		t.Error("StrictInsert = false, want true")
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4 (flag not given)", cfg.Workers)
	}
}

func TestRunFill_RequiresConfig(t *testing.T) {
	configPath = ""
	err := runFill(rootCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "config file required") {
		t.Errorf("runFill() error = %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	if got := strings.TrimSpace(buf.String()); got == "" || !strings.HasPrefix(got, "dev") && got != buildVersion {
		t.Errorf("version output = %q", got)
	}
}
