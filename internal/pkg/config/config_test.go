package config_test

import (
	"strings"
	"testing"

	"github.com/samirrijal/safemap/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("safemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discovery.RadiusKm != 5 {
		t.Errorf("expected 5 km default radius, got %g", cfg.Discovery.RadiusKm)
	}
	if cfg.Geolocation.HighTimeoutSeconds != 15 || cfg.Geolocation.LowTimeoutSeconds != 10 {
		t.Errorf("unexpected tier timeouts: %+v", cfg.Geolocation)
	}
	if cfg.Telemetry.ServiceName != "safemap-test" {
		t.Errorf("expected service name safemap-test, got %s", cfg.Telemetry.ServiceName)
	}
	if len(cfg.Overpass.Endpoints) == 0 {
		t.Error("expected default overpass endpoints")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SAFEMAP_DISCOVERY_EMERGENCY_PHONE", "112")
	t.Setenv("SAFEMAP_SERVER_PORT", "9090")

	cfg, err := config.Load("safemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discovery.EmergencyPhone != "112" {
		t.Errorf("expected 112, got %s", cfg.Discovery.EmergencyPhone)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.Discovery.Source = "carrier-pigeon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"server.port", "nats.url", "discovery.source", "discovery.radius_km"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestValidate_PostgresSourceNeedsDatabase(t *testing.T) {
	cfg, err := config.Load("safemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Discovery.Source = "postgres"
	cfg.Database.Enabled = false

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "database.enabled") {
		t.Errorf("expected database.enabled error, got %v", err)
	}
}
