package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.ListenAddress != ":8080" {
		t.Fatalf("listen address = %q", cfg.ListenAddress)
	}
	if cfg.Loan.FundingWindowDays != 30 || cfg.Loan.MissedPaymentLimit != 3 {
		t.Fatalf("loan defaults = %+v", cfg.Loan)
	}
	if cfg.Pool.TargetUtilisationBps != 8_000 || !cfg.Pool.AutoInvestEnabled {
		t.Fatalf("pool defaults = %+v", cfg.Pool)
	}

	// Second load reads the file back.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Loan.PlatformFeeBps != cfg.Loan.PlatformFeeBps {
		t.Fatalf("reload mismatch: %+v", again.Loan)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
ListenAddress = ":9090"
DataDir = "/tmp/lend"
Env = "staging"

[loan]
MinContribution = "250"
PlatformFeeBps = 150
FundingWindowDays = 14
PaymentPeriodDays = 30
GraceDays = 10
MissedPaymentLimit = 2

[pool]
MinDeposit = "1000"
MaxRiskLevel = 6
TargetUtilisationBps = 7500
MaxExposureBps = 500
AutoInvestEnabled = false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9090" || cfg.Env != "staging" {
		t.Fatalf("daemon fields = %+v", cfg)
	}
	if cfg.Loan.MinContribution.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("min contribution = %s", cfg.Loan.MinContribution)
	}
	if cfg.Loan.GraceDays != 10 || cfg.Loan.MissedPaymentLimit != 2 {
		t.Fatalf("loan params = %+v", cfg.Loan)
	}
	if cfg.Pool.MaxExposureBps != 500 || cfg.Pool.AutoInvestEnabled {
		t.Fatalf("pool settings = %+v", cfg.Pool)
	}
}

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fee over 100%", func(c *Config) { c.Loan.PlatformFeeBps = 10_001 }},
		{"grace exceeds period", func(c *Config) { c.Loan.GraceDays = 30 }},
		{"utilisation over 100%", func(c *Config) { c.Pool.TargetUtilisationBps = 10_001 }},
		{"exposure over 100%", func(c *Config) { c.Pool.MaxExposureBps = 10_001 }},
		{"risk level out of range", func(c *Config) { c.Pool.MaxRiskLevel = 11 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
