package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadExampleScenario(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "unprotected_left_turn.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeltaT != 0.25 {
		t.Errorf("delta_t = %v, want 0.25", cfg.DeltaT)
	}
	if len(cfg.VehicleList) != 2 {
		t.Fatalf("vehicle count = %d, want 2", len(cfg.VehicleList))
	}
	order := cfg.VehicleOrder()
	if order[0] != "blue" || order[1] != "red" {
		t.Errorf("vehicle order = %v, want [blue red]", order)
	}
	if cfg.VehicleList["blue"].Level != 1 || cfg.VehicleList["red"].Level != 0 {
		t.Errorf("levels = %d/%d, want 1/0",
			cfg.VehicleList["blue"].Level, cfg.VehicleList["red"].Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("delta_t: [not, a, number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func validConfig() Config {
	cfg := Default()
	cfg.VehicleList = map[string]VehicleConfig{
		"a": {
			Level:  1,
			Init:   InitConfig{X: 2.1, Y: -16, Heading: 1.5708, SpeedMin: 3, SpeedMax: 5},
			Target: TargetConfig{X: -16, Y: 2.1},
		},
	}
	return cfg
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero delta_t", func(c *Config) { c.DeltaT = 0 }, "delta_t"},
		{"negative ceiling", func(c *Config) { c.MaxSimTime = -1 }, "max_simulation_time"},
		{"lane too wide", func(c *Config) { c.LaneWidth = 20 }, "lane_width"},
		{"empty fleet", func(c *Config) { c.VehicleList = nil }, "vehicle_list"},
		{"negative iterations", func(c *Config) { c.Search.Iterations = -1 }, "iterations"},
		{"bad policy", func(c *Config) { c.Search.Policy = "oracle" }, "policy"},
		{"neural without model", func(c *Config) { c.Search.Policy = "neural" }, "model_path"},
		{"level too high", func(c *Config) {
			v := c.VehicleList["a"]
			v.Level = MaxLevel + 1
			c.VehicleList["a"] = v
		}, "level"},
		{"init off map", func(c *Config) {
			v := c.VehicleList["a"]
			v.Init.X = 100
			c.VehicleList["a"] = v
		}, "init"},
		{"inverted speed range", func(c *Config) {
			v := c.VehicleList["a"]
			v.Init.SpeedMin = 6
			v.Init.SpeedMax = 3
			c.VehicleList["a"] = v
		}, "speed"},
		{"envelope smaller than body", func(c *Config) { c.Safety.Length = 2 }, "envelope"},
	}
	for _, c := range cases {
		cfg := validConfig()
		c.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", c.name)
			continue
		}
		if !strings.Contains(err.Error(), c.wantSub) {
			t.Errorf("%s: error %q does not mention %q", c.name, err, c.wantSub)
		}
	}
}

func TestValidateAllowsDegenerateSearch(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Iterations = 0
	cfg.Search.MaxDepth = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero budget and zero depth should validate: %v", err)
	}
}
