package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/icexin/minicraft-server/hub"
	"github.com/icexin/minicraft-server/store"
	"github.com/icexin/minicraft-server/world"
)

func main() {
	flag.Parse()

	cfg := configFromFlags()
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	m, _ := hub.ParseMode(cfg.Mode)

	db, err := store.Open(cfg.DBPath, store.Options{NoSync: cfg.NoSync})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	w, err := world.NewWorld(db)
	if err != nil {
		log.Fatal(err)
	}
	roster, err := newRoster(m, cfg, db)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("loaded %d blocks", w.Len())

	dispatcher := hub.NewDispatcher(m, w, roster, nil)
	server := NewServer(cfg, dispatcher, roster)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, server); err != nil {
		log.Print(err)
	}
}

// newRoster keeps push-mode players in memory only; connections decide
// liveness there. Pull mode persists players and expires them by age.
func newRoster(mode hub.Mode, cfg *Config, db *store.Store) (*world.Roster, error) {
	if mode == hub.Push {
		return world.NewRoster(world.ConnectionPolicy{}, nil)
	}
	return world.NewRoster(world.StalenessPolicy{Threshold: cfg.Staleness}, db)
}

func run(ctx context.Context, cfg *Config, server *Server) error {
	var l net.Listener
	if server.dispatcher.Mode() == hub.Push && cfg.ListenAddr != "" {
		var err error
		l, err = net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return err
		}
		log.Printf("serving native clients on %s", l.Addr())
		go server.Serve(l)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Routes(),
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("%s mode server listening on %s", server.dispatcher.Mode(), cfg.HTTPAddr)
		errc <- httpServer.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		log.Print("shutting down")
	}

	if l != nil {
		l.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		log.Printf("http shutdown: %v", serr)
	}
	if sessions := server.dispatcher.Sessions(); sessions != nil {
		sessions.CloseAll()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
