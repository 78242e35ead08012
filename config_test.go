package main

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"

	"github.com/icexin/minicraft-server/hub"
)

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                  "8080",
		"MINICRAFT_MODE":        "pull",
		"MINICRAFT_DB":          "/tmp/world.db",
		"MINICRAFT_ORIGINS":     "https://a.example, https://b.example",
		"MINICRAFT_RATE":        "5",
		"MINICRAFT_BURST":       "not a number",
		"MINICRAFT_STALENESS":   "10s",
		"MINICRAFT_MAX_MESSAGE": "1024",
	}
	cfg := testConfig(hub.Push)
	cfg.applyEnv(func(k string) string { return env[k] })

	testutil.AssertEqual(t, "http", cfg.HTTPAddr, ":8080")
	testutil.AssertEqual(t, "mode", cfg.Mode, "pull")
	testutil.AssertEqual(t, "db", cfg.DBPath, "/tmp/world.db")
	testutil.AssertEqual(t, "origins", len(cfg.AllowedOrigins), 2)
	testutil.AssertEqual(t, "second origin", cfg.AllowedOrigins[1], "https://b.example")
	testutil.AssertEqual(t, "rate", cfg.RateLimit, 5.0)
	testutil.AssertEqual(t, "burst kept", cfg.RateBurst, 1000)
	testutil.AssertEqual(t, "staleness", cfg.Staleness, 10*time.Second)
	testutil.AssertEqual(t, "max message", cfg.MaxMessageSize, int64(1024))
}

func TestConfig_ExplicitHTTPWinsOverPort(t *testing.T) {
	env := map[string]string{
		"PORT":           "8080",
		"MINICRAFT_HTTP": "127.0.0.1:9000",
	}
	cfg := testConfig(hub.Push)
	cfg.applyEnv(func(k string) string { return env[k] })
	testutil.AssertEqual(t, "http", cfg.HTTPAddr, "127.0.0.1:9000")
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(c *Config)
		expErrs []string
	}{
		"valid push": {mutate: func(c *Config) {}},
		"valid pull": {mutate: func(c *Config) { c.Mode = "pull" }},
		"bad mode": {
			mutate:  func(c *Config) { c.Mode = "broadcast" },
			expErrs: []string{`unknown mode "broadcast"`},
		},
		"missing http": {
			mutate:  func(c *Config) { c.HTTPAddr = "" },
			expErrs: []string{"http address is required"},
		},
		"bad listen": {
			mutate:  func(c *Config) { c.ListenAddr = "nowhere" },
			expErrs: []string{"listen address"},
		},
		"listen ignored in pull": {
			mutate: func(c *Config) { c.Mode = "pull"; c.ListenAddr = "nowhere" },
		},
		"zero rate": {
			mutate:  func(c *Config) { c.RateLimit = 0 },
			expErrs: []string{"rate must be positive"},
		},
		"several": {
			mutate:  func(c *Config) { c.DBPath = ""; c.Staleness = 0 },
			expErrs: []string{"db path is required", "staleness must be positive"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(hub.Push)
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.expErrs) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			for _, e := range tt.expErrs {
				testutil.AssertErrorContains(t, err, e)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	testutil.AssertEqual(t, "empty", len(parseList(" , ")), 0)
	testutil.AssertEqual(t, "trimmed", parseList(" * ")[0], "*")
}
