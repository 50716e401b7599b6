package common

import (
	"strings"
	"testing"
)

func validServerConfig() ServerConfig {
	return ServerConfig{
		NodeName:   "a",
		Members:    map[string]string{"a": "localhost:9900", "b": "localhost:9901", "c": "localhost:9902"},
		Authority:  "c",
		Mode:       ModeCRAQ,
		ChainOrder: []string{"a", "b", "c"},
		Transport:  ServerTransportConfig{Endpoint: "localhost:9900"},
		LogLevel:   "info",
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		change func(c *ServerConfig)
		ok     bool
	}{
		{"valid craq", func(c *ServerConfig) {}, true},
		{"valid star", func(c *ServerConfig) { c.Mode = ModeStar; c.Authority = "a"; c.ChainOrder = nil }, true},
		{"empty name", func(c *ServerConfig) { c.NodeName = "" }, false},
		{"self not a member", func(c *ServerConfig) { c.NodeName = "x" }, false},
		{"authority not a member", func(c *ServerConfig) { c.Authority = "x" }, false},
		{"member without endpoint", func(c *ServerConfig) { c.Members["d"] = "" }, false},
		{"negative timeout", func(c *ServerConfig) { c.TimeoutSecond = -1 }, false},
		{"authority not tail", func(c *ServerConfig) { c.Authority = "b" }, false},
		{"chain misses member", func(c *ServerConfig) { c.ChainOrder = []string{"a", "c"} }, false},
		{"chain lists member twice", func(c *ServerConfig) { c.ChainOrder = []string{"a", "b", "b", "c"} }, false},
		{"unknown mode", func(c *ServerConfig) { c.Mode = "ring" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validServerConfig()
			tt.change(&c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseChainMode(t *testing.T) {
	if m, err := ParseChainMode("CRAQ"); err != nil || m != ModeCRAQ {
		t.Errorf("expected craq, got %q (%v)", m, err)
	}
	if m, err := ParseChainMode("star"); err != nil || m != ModeStar {
		t.Errorf("expected star, got %q (%v)", m, err)
	}
	if _, err := ParseChainMode("ring"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestConfigString(t *testing.T) {
	c := validServerConfig()
	s := c.String()
	for _, want := range []string{"a -> b -> c", "localhost:9902", "unbounded"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in:\n%s", want, s)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error"} {
		if _, err := ParseLogLevel(level); err != nil {
			t.Errorf("level %s: %v", level, err)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := InitLoggers("loud"); err == nil {
		t.Error("expected error from InitLoggers")
	}
	if err := InitLoggers("error"); err != nil {
		t.Errorf("InitLoggers failed: %v", err)
	}
}
