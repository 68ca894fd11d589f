package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"celestial/internal/config"
	"celestial/internal/server"
	"celestial/internal/store"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "surfaced.yml", "path to the surface server configuration file")
	flag.Parse()

	if wrote, err := writeConfigFromEnv(cfgPath); err != nil {
		log.Fatalf("sync config: %v", err)
	} else if wrote {
		log.Printf("configuration from environment written to %s", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := config.WriteDefault(cfgPath); err != nil {
				log.Fatalf("write default config: %v", err)
			}
			log.Printf("no configuration found, default configuration written to %s", cfgPath)
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func run(cfg *config.Config) error {
	var st *store.Store
	if cfg.Store.Path != "" {
		var err error
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	srv, err := server.New(cfg, st)
	if err != nil {
		return fmt.Errorf("initialise surface server: %w", err)
	}

	ctx, cancel := signalContext(shutdownGrace(cfg))
	defer cancel()

	return srv.Run(ctx)
}

// shutdownGrace is how long the process may take to exit after a signal:
// the HTTP shutdown timeout plus time for in-flight generations to notice
// cancellation.
func shutdownGrace(cfg *config.Config) time.Duration {
	grace := cfg.Server.ShutdownTimeout.Duration() + 5*time.Second
	if grace < 10*time.Second {
		grace = 10 * time.Second
	}
	return grace
}

// signalContext is cancelled on SIGINT or SIGTERM. If the process is still
// alive grace later it exits with status 1.
func signalContext(grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case sig := <-signals:
			log.Printf("received %s, stopping surface server", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		time.AfterFunc(grace, func() {
			log.Printf("surface server did not stop within %s, exiting", grace)
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
