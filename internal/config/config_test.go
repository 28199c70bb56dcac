package config

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

func TestLoadConfig_DefaultLimitsMatchJurisdiction(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "WINDOW_CAP_EUR")
	unsetEnvWithCleanup(t, "SINGLE_TRANSFER_CAP_EUR")
	unsetEnvWithCleanup(t, "WINDOW_PERIOD_DAYS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	limits, err := cfg.Limits()
	if err != nil {
		t.Fatalf("Limits returned error: %v", err)
	}
	if !limits.WindowCap.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("expected default window cap 999, got %s", limits.WindowCap)
	}
	if !limits.SingleTransferCap.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("expected default single-transfer cap 999, got %s", limits.SingleTransferCap)
	}
	if limits.PeriodDays != 8 {
		t.Fatalf("expected default period of 8 days, got %d", limits.PeriodDays)
	}
}

func TestLoadConfig_JurisdictionOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "WINDOW_CAP_EUR", "2500.50")
	setEnvWithCleanup(t, "SINGLE_TRANSFER_CAP_EUR", "1000")
	setEnvWithCleanup(t, "WINDOW_PERIOD_DAYS", "30")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	limits, err := cfg.Limits()
	if err != nil {
		t.Fatalf("Limits returned error: %v", err)
	}
	if !limits.WindowCap.Equal(decimal.RequireFromString("2500.50")) {
		t.Fatalf("expected window cap 2500.50, got %s", limits.WindowCap)
	}
	if !limits.SingleTransferCap.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected single-transfer cap 1000, got %s", limits.SingleTransferCap)
	}
	if limits.PeriodDays != 30 {
		t.Fatalf("expected period of 30 days, got %d", limits.PeriodDays)
	}
}

func TestLoadConfig_InvalidCapsAreHardErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparsable window cap", key: "WINDOW_CAP_EUR", value: "not-a-number"},
		{name: "zero window cap", key: "WINDOW_CAP_EUR", value: "0"},
		{name: "negative single-transfer cap", key: "SINGLE_TRANSFER_CAP_EUR", value: "-10"},
		{name: "zero-day window", key: "WINDOW_PERIOD_DAYS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			setEnvWithCleanup(t, tt.key, tt.value)

			cfg, err := LoadConfig(t.TempDir())
			if err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if _, err := cfg.Limits(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
