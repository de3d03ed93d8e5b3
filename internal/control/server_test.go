package control

import (
	"testing"
	"time"

	"github.com/provisia/warden/internal/limiter"
)

func TestPresetDocumentConfig(t *testing.T) {
	t.Parallel()
	doc := PresetDocument{
		Name:         "webhook",
		Requests:     250,
		Window:       30 * time.Second,
		Strategy:     "leaky_bucket",
		ErrorMessage: "slow down",
	}

	cfg, err := doc.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Strategy != limiter.LeakyBucket {
		t.Fatalf("strategy = %v, want leaky bucket", cfg.Strategy)
	}
	if cfg.Requests != 250 || cfg.Window != 30*time.Second {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.ErrorMessage != "slow down" {
		t.Fatalf("error message = %q", cfg.ErrorMessage)
	}
}

func TestPresetDocumentRejectsUnknownStrategy(t *testing.T) {
	t.Parallel()
	doc := PresetDocument{Name: "bad", Requests: 10, Window: time.Minute, Strategy: "spiral_window"}
	if _, err := doc.Config(); err == nil {
		t.Fatal("expected error for unknown strategy name")
	}
}
