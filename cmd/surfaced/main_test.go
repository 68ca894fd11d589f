package main

import (
	"testing"
	"time"

	"celestial/internal/config"
)

func TestShutdownGrace(t *testing.T) {
	tests := []struct {
		name     string
		shutdown time.Duration
		want     time.Duration
	}{
		{name: "default timeout", shutdown: 5 * time.Second, want: 10 * time.Second},
		{name: "short timeout keeps floor", shutdown: time.Second, want: 10 * time.Second},
		{name: "long timeout", shutdown: 30 * time.Second, want: 35 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Server.ShutdownTimeout = config.Duration(tt.shutdown)
			if got := shutdownGrace(cfg); got != tt.want {
				t.Fatalf("shutdownGrace = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := signalContext(time.Minute)
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("context not cancelled")
	}
}
