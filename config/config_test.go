package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Transport.Address != ":8080" {
		t.Errorf("Transport.Address = %q, want %q", cfg.Transport.Address, ":8080")
	}
	if cfg.Transport.ReadTimeout != 30*time.Second {
		t.Errorf("Transport.ReadTimeout = %v, want %v", cfg.Transport.ReadTimeout, 30*time.Second)
	}
	if cfg.Transport.MaxPayloadSize != 512*1024 {
		t.Errorf("Transport.MaxPayloadSize = %d, want %d", cfg.Transport.MaxPayloadSize, 512*1024)
	}
	if cfg.RPC.DefaultRequestTTL != 10*time.Second {
		t.Errorf("RPC.DefaultRequestTTL = %v, want %v", cfg.RPC.DefaultRequestTTL, 10*time.Second)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Security.RequireSignedMessages {
		t.Error("Security.RequireSignedMessages = true, want false")
	}
	if len(cfg.Security.AllowedOrigins) != 1 || cfg.Security.AllowedOrigins[0] != "*" {
		t.Errorf("Security.AllowedOrigins = %v, want [*]", cfg.Security.AllowedOrigins)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("Load(\"\") = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("UP_TRANSPORT_ADDRESS", ":9090")
	t.Setenv("UP_LOG_LEVEL", "debug")
	t.Setenv("UP_SECURITY_REQUIRE_SIGNED_MESSAGES", "true")
	t.Setenv("UP_SECURITY_ALLOWED_ORIGINS", "vin.vehicles,fleet.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transport.Address != ":9090" {
		t.Errorf("Transport.Address = %q, want :9090", cfg.Transport.Address)
	}
	if !cfg.IsDebug() {
		t.Error("expected IsDebug() true after UP_LOG_LEVEL=debug")
	}
	if !cfg.Security.RequireSignedMessages {
		t.Error("expected RequireSignedMessages true")
	}
	if len(cfg.Security.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.Security.AllowedOrigins)
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "transport:\n  address: \":7000\"\nlogging:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transport.Address != ":7000" {
		t.Errorf("Transport.Address = %q, want :7000", cfg.Transport.Address)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("address = \":8080\""), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unsupported config file extension")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty transport address")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unsupported log level")
	}

	cfg = DefaultConfig()
	cfg.RPC.MaxListeners = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative max listeners")
	}
}

func TestSaveToFile_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	cfg := DefaultConfig()
	cfg.Transport.Address = ":6000"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Transport.Address != ":6000" {
		t.Errorf("Transport.Address = %q, want :6000", loaded.Transport.Address)
	}
}
