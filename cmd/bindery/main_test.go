package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
harvest_dir = %q
processing_dir = %q
staging_dir = %q
log_dir = %q

[network]
endpoint = "http://127.0.0.1:1/api/sword"
provider_uuid = "00112233-4455-4677-8899-AABBCCDDEEFF"
`,
		filepath.Join(base, "harvest"),
		filepath.Join(base, "processing"),
		filepath.Join(base, "staging"),
		filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitAndOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output should name the written path: %s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("config file should exist: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestAddRegistersDeposit(t *testing.T) {
	configPath := writeTestConfig(t)

	notification := filepath.Join(t.TempDir(), "notification.json")
	payload := `{
  "journalUuid": "00112233-4455-4677-8899-aabbccddeeff",
  "title": "Journal of Tests",
  "gatewayUrl": "http://journal.example.edu/gateway",
  "ojsVersion": "3.3.0",
  "depositUuid": "a1b2c3d4-e5f6-4a5b-8c9d-0e1f2a3b4c5d",
  "action": "add",
  "volume": "4",
  "issue": "2",
  "pubDate": "2026-03-01",
  "sourceUrl": "http://journal.example.edu/gateway/deposit.zip",
  "size": 4096,
  "checksumType": "SHA1",
  "checksumValue": "deadbeef"
}`
	if err := os.WriteFile(notification, []byte(payload), 0o644); err != nil {
		t.Fatalf("write notification: %v", err)
	}

	out, err := runCommand(t, "--config", configPath, "add", notification)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "A1B2C3D4-E5F6-4A5B-8C9D-0E1F2A3B4C5D") {
		t.Fatalf("output should name the registered deposit: %s", out)
	}

	out, err = runCommand(t, "--config", configPath, "list", "--state", "depositedByJournal")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "A1B2C3D4-E5F6-4A5B-8C9D-0E1F2A3B4C5D") {
		t.Fatalf("list should show the new deposit: %s", out)
	}

	if _, err := runCommand(t, "--config", configPath, "add", notification); err == nil {
		t.Fatal("re-adding the same deposit should fail")
	}
}

func TestListRejectsUnknownState(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCommand(t, "--config", configPath, "list", "--state", "nonsense"); err == nil {
		t.Fatal("unknown state should be rejected")
	}
}

func TestShowUnknownDeposit(t *testing.T) {
	configPath := writeTestConfig(t)

	_, err := runCommand(t, "--config", configPath, "show", "a1b2c3d4-e5f6-4a5b-8c9d-0e1f2a3b4c5d")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unknown deposit should be reported, got %v", err)
	}
}
