package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Port != DefaultPort || cfg.Picker.PollMs != DefaultPollMs || cfg.Server.Host != "localhost" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.PollInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected poll interval %v", cfg.PollInterval())
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"picker":{"template_path":"t.png","origin":"1,2,3,4","poll_ms":250},"server":{"port":9000,"grpc_port":9001},"journal":{"path":"events.db"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Picker.TemplatePath != "t.png" || cfg.Picker.Origin != "1,2,3,4" || cfg.Picker.PollMs != 250 {
		t.Fatalf("unexpected picker %+v", cfg.Picker)
	}
	if cfg.ListenAddr() != "localhost:9000" || cfg.GRPCAddr() != "localhost:9001" {
		t.Fatalf("unexpected addrs %s %s", cfg.ListenAddr(), cfg.GRPCAddr())
	}
	if cfg.Journal.Path != "events.db" {
		t.Fatalf("unexpected journal %+v", cfg.Journal)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected untouched logging defaults, got %+v", cfg.Logging)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "picker:\n  origin: \"5,6,7,8\"\n  poll_ms: 10\n  watch_template: true\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Picker.Origin != "5,6,7,8" || !cfg.Picker.WatchTemplate {
		t.Fatalf("unexpected picker %+v", cfg.Picker)
	}
	if cfg.Picker.PollMs != MinPollMs {
		t.Fatalf("expected poll floor %d, got %d", MinPollMs, cfg.Picker.PollMs)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestClampPort(t *testing.T) {
	cases := map[int]int{0: DefaultPort, 80: MinPort, 1024: 1024, 8787: 8787, 70000: MaxPort}
	for in, want := range cases {
		if got := ClampPort(in); got != want {
			t.Fatalf("ClampPort(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestValidateRejectsNegativeTileUnit(t *testing.T) {
	cfg := Default()
	cfg.Picker.TileUnit = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative tile unit")
	}
}

func TestPathHonoursEnv(t *testing.T) {
	t.Setenv("PIXELPICK_CONFIG", "/tmp/custom.yaml")
	if Path() != "/tmp/custom.yaml" {
		t.Fatalf("expected env override, got %s", Path())
	}
}
