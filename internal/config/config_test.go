package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != ":8080" {
		t.Errorf("Port = %q, want :8080", cfg.Server.Port)
	}
	if cfg.Session.MinStabilityThreshold != 0.85 {
		t.Errorf("MinStabilityThreshold = %v, want 0.85", cfg.Session.MinStabilityThreshold)
	}
	if cfg.Session.MaxBufferTimeout != 5*time.Second {
		t.Errorf("MaxBufferTimeout = %v, want 5s", cfg.Session.MaxBufferTimeout)
	}
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("MIN_STABILITY_THRESHOLD", "0.9")
	t.Setenv("MAX_LISTENERS_PER_SESSION", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != ":9090" {
		t.Errorf("Port = %q, want :9090", cfg.Server.Port)
	}
	if cfg.Session.MinStabilityThreshold != 0.9 {
		t.Errorf("MinStabilityThreshold = %v, want 0.9", cfg.Session.MinStabilityThreshold)
	}
	if cfg.Session.MaxListenersPerSession != 50 {
		t.Errorf("MaxListenersPerSession = %d, want 50", cfg.Session.MaxListenersPerSession)
	}
}

func TestLoadRejectsStabilityThresholdOutOfRange(t *testing.T) {
	t.Setenv("MIN_STABILITY_THRESHOLD", "0.5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for an out-of-range stability threshold")
	}
}

func TestLoadRejectsBufferTimeoutOutOfRange(t *testing.T) {
	t.Setenv("MAX_BUFFER_TIMEOUT", "1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for a too-short max buffer timeout")
	}
}

func TestLoadRejectsWarningBelowRefresh(t *testing.T) {
	t.Setenv("CONNECTION_REFRESH_MINUTES", "100")
	t.Setenv("CONNECTION_WARNING_MINUTES", "90")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error when the warning threshold precedes the refresh threshold")
	}
}

func TestValidateMinStabilityThresholdAcceptsBoundaries(t *testing.T) {
	if err := ValidateMinStabilityThreshold(0.70); err != nil {
		t.Errorf("0.70 should be accepted, got %v", err)
	}
	if err := ValidateMinStabilityThreshold(0.95); err != nil {
		t.Errorf("0.95 should be accepted, got %v", err)
	}
}

func TestValidateMinStabilityThresholdRejectsOutOfRange(t *testing.T) {
	if err := ValidateMinStabilityThreshold(0.69); err == nil {
		t.Error("expected an error below 0.70")
	}
	if err := ValidateMinStabilityThreshold(0.96); err == nil {
		t.Error("expected an error above 0.95")
	}
}

func TestValidateMaxBufferTimeoutAcceptsBoundaries(t *testing.T) {
	if err := ValidateMaxBufferTimeout(2 * time.Second); err != nil {
		t.Errorf("2s should be accepted, got %v", err)
	}
	if err := ValidateMaxBufferTimeout(10 * time.Second); err != nil {
		t.Errorf("10s should be accepted, got %v", err)
	}
}

func TestValidateMaxBufferTimeoutRejectsOutOfRange(t *testing.T) {
	if err := ValidateMaxBufferTimeout(time.Second); err == nil {
		t.Error("expected an error below 2s")
	}
	if err := ValidateMaxBufferTimeout(11 * time.Second); err == nil {
		t.Error("expected an error above 10s")
	}
}
