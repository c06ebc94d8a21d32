package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestConfig_DatabaseURL(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Engine = "postgres"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Name = "testdb"
	cfg.Database.Username = "testuser"
	cfg.Database.Password = "testpassword"

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode="
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}
}

func TestConfig_ServerAddress(t *testing.T) {
	cfg := &Config{}
	cfg.Transport.ServerHost = "192.168.1.5"
	cfg.Transport.ServerPort = 3720

	if addr := cfg.ServerAddress(); addr != "192.168.1.5:3720" {
		t.Errorf("ServerAddress() want = 192.168.1.5:3720, got = %s", addr)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Transport.BaudRate != 921600 {
		t.Errorf("expected default baud rate 921600, got %d", cfg.Transport.BaudRate)
	}
	if cfg.Transport.ServerPort != 3720 {
		t.Errorf("expected default server port 3720, got %d", cfg.Transport.ServerPort)
	}
	if cfg.Transmit.Policy != "six" {
		t.Errorf("expected default policy six, got %s", cfg.Transmit.Policy)
	}
	if cfg.Transmit.Launch.Wait != 2*time.Second {
		t.Errorf("expected default launch wait of 2s, got %s", cfg.Transmit.Launch.Wait)
	}
	if cfg.Database.Engine != "sqlite" {
		t.Errorf("expected default engine sqlite, got %s", cfg.Database.Engine)
	}
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	contents := `
logging:
  log_level: debug
transmit:
  policy: five
  key_delay: 5ms
  launch:
    enabled: false
database:
  host: db.internal
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KEYCAST_DATABASE_HOST", "override.internal")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Logging.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.LogLevel)
	}
	if cfg.Transmit.Policy != "five" {
		t.Errorf("expected policy five, got %s", cfg.Transmit.Policy)
	}
	if cfg.Transmit.KeyDelay != 5*time.Millisecond {
		t.Errorf("expected key delay 5ms, got %s", cfg.Transmit.KeyDelay)
	}
	if cfg.Transmit.Launch.Enabled {
		t.Error("expected launch to be disabled")
	}
	if cfg.Database.Host != "override.internal" {
		t.Errorf("expected the environment to override database.host, got %s", cfg.Database.Host)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("transmit: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Error("expected an error for a malformed config file")
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.LogLevel = "warn"
	cfg.Logging.LogFilePath = filepath.Join(t.TempDir(), "keycast.log")

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() returned an unexpected error: %v", err)
	}
	if logger.Level != logrus.WarnLevel {
		t.Errorf("expected warn level, got %s", logger.Level)
	}
	logger.Warn("written")

	b, err := os.ReadFile(cfg.Logging.LogFilePath)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Error("expected the log file to contain the message")
	}

	cfg.Logging.LogLevel = "loud"
	if _, err := NewLogger(cfg); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}
