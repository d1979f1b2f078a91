package main

import (
	"testing"
	"time"
)

func TestSweepBackoff_DoublesPerAttempt(t *testing.T) {
	cfg := sweepRetryConfig{
		maxAttempts: 5,
		baseBackoff: 2 * time.Second,
		maxBackoff:  10 * time.Minute,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
	}
	for _, c := range cases {
		if got := sweepBackoff(c.attempt, cfg); got != c.want {
			t.Fatalf("attempt %d: got %s, want %s", c.attempt, got, c.want)
		}
	}
}

func TestSweepBackoff_CapsAtMax(t *testing.T) {
	cfg := sweepRetryConfig{
		maxAttempts: 20,
		baseBackoff: 2 * time.Second,
		maxBackoff:  10 * time.Minute,
	}

	if got := sweepBackoff(15, cfg); got != 10*time.Minute {
		t.Fatalf("attempt 15: got %s, want cap of 10m", got)
	}
	// Large exponents must not overflow past the cap.
	if got := sweepBackoff(60, cfg); got != 10*time.Minute {
		t.Fatalf("attempt 60: got %s, want cap of 10m", got)
	}
}

func TestSweepBackoff_NonPositiveAttemptUsesBase(t *testing.T) {
	cfg := sweepRetryConfig{baseBackoff: 3 * time.Second, maxBackoff: time.Minute}
	if got := sweepBackoff(0, cfg); got != 3*time.Second {
		t.Fatalf("attempt 0: got %s, want base", got)
	}
	if got := sweepBackoff(-4, cfg); got != 3*time.Second {
		t.Fatalf("attempt -4: got %s, want base", got)
	}
}

func TestGetSweepRetryConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SWEEP_MAX_ATTEMPTS", "3")
	t.Setenv("SWEEP_BASE_BACKOFF_SECONDS", "5")
	t.Setenv("SWEEP_MAX_BACKOFF_SECONDS", "120")

	cfg := getSweepRetryConfig()
	if cfg.maxAttempts != 3 {
		t.Fatalf("maxAttempts = %d, want 3", cfg.maxAttempts)
	}
	if cfg.baseBackoff != 5*time.Second {
		t.Fatalf("baseBackoff = %s, want 5s", cfg.baseBackoff)
	}
	if cfg.maxBackoff != 2*time.Minute {
		t.Fatalf("maxBackoff = %s, want 2m", cfg.maxBackoff)
	}
}

func TestGetSweepRetryConfig_IgnoresGarbage(t *testing.T) {
	t.Setenv("SWEEP_MAX_ATTEMPTS", "zero")
	t.Setenv("SWEEP_BASE_BACKOFF_SECONDS", "-1")
	t.Setenv("SWEEP_MAX_BACKOFF_SECONDS", "")

	cfg := getSweepRetryConfig()
	if cfg.maxAttempts != 5 || cfg.baseBackoff != 2*time.Second || cfg.maxBackoff != 10*time.Minute {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}
