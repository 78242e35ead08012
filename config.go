package main

import (
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/icexin/minicraft-server/hub"
	"github.com/icexin/minicraft-server/world"
)

var (
	mode        = flag.String("mode", "push", "push (websocket + yamux) or pull (http polling)")
	listenAddr  = flag.String("l", ":8421", "yamux listen address for native clients, empty to disable")
	httpAddr    = flag.String("http", ":3000", "http listen address")
	dbpath      = flag.String("db", "minicraft.db", "db file name")
	staticDir   = flag.String("static", "", "directory of static client files to serve")
	noSync      = flag.Bool("nosync", false, "skip fsync after each write")
	origins     = flag.String("origins", "*", "comma separated websocket origins, * for any")
	maxMessage  = flag.Int64("max-message", 4096, "maximum inbound websocket message size in bytes")
	rateLimit   = flag.Float64("rate", 30, "inbound messages per second per connection")
	rateBurst   = flag.Int("burst", 60, "inbound message burst per connection")
	staleness   = flag.Duration("staleness", world.DefaultStaleness, "pull mode: drop players silent for this long")
	shutdownTTL = flag.Duration("shutdown-timeout", 5*time.Second, "graceful shutdown timeout")
)

type Config struct {
	Mode            string
	ListenAddr      string
	HTTPAddr        string
	DBPath          string
	StaticDir       string
	NoSync          bool
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       float64
	RateBurst       int
	Staleness       time.Duration
	ShutdownTimeout time.Duration
}

func configFromFlags() *Config {
	return &Config{
		Mode:            *mode,
		ListenAddr:      *listenAddr,
		HTTPAddr:        *httpAddr,
		DBPath:          *dbpath,
		StaticDir:       *staticDir,
		NoSync:          *noSync,
		AllowedOrigins:  parseList(*origins),
		MaxMessageSize:  *maxMessage,
		RateLimit:       *rateLimit,
		RateBurst:       *rateBurst,
		Staleness:       *staleness,
		ShutdownTimeout: *shutdownTTL,
	}
}

// applyEnv overlays MINICRAFT_* variables, and PORT for the http listener.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("PORT"); v != "" {
		c.HTTPAddr = ":" + v
	}
	if v := getenv("MINICRAFT_MODE"); v != "" {
		c.Mode = v
	}
	if v := getenv("MINICRAFT_LISTEN"); v != "" {
		c.ListenAddr = v
	}
	if v := getenv("MINICRAFT_HTTP"); v != "" {
		c.HTTPAddr = v
	}
	if v := getenv("MINICRAFT_DB"); v != "" {
		c.DBPath = v
	}
	if v := getenv("MINICRAFT_STATIC"); v != "" {
		c.StaticDir = v
	}
	if v := getenv("MINICRAFT_ORIGINS"); v != "" {
		c.AllowedOrigins = parseList(v)
	}
	if v := getenv("MINICRAFT_MAX_MESSAGE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxMessageSize = n
		}
	}
	if v := getenv("MINICRAFT_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimit = f
		}
	}
	if v := getenv("MINICRAFT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateBurst = n
		}
	}
	if v := getenv("MINICRAFT_STALENESS"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Staleness = d
		}
	}
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	m, err := hub.ParseMode(c.Mode)
	if err != nil {
		el.Add(err)
	}
	if c.HTTPAddr == "" {
		el.Add(fmt.Errorf("http address is required"))
	} else if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
		el.Add(fmt.Errorf("http address: %w", err))
	}
	if m == hub.Push && c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			el.Add(fmt.Errorf("listen address: %w", err))
		}
	}
	if c.DBPath == "" {
		el.Add(fmt.Errorf("db path is required"))
	}
	if c.MaxMessageSize <= 0 {
		el.Add(fmt.Errorf("max message size must be positive"))
	}
	if c.RateLimit <= 0 {
		el.Add(fmt.Errorf("rate must be positive"))
	}
	if c.RateBurst <= 0 {
		el.Add(fmt.Errorf("burst must be positive"))
	}
	if c.Staleness <= 0 {
		el.Add(fmt.Errorf("staleness must be positive"))
	}

	return el.Err()
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
