package daemon

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/veridichain/veridi/internal/domain"
)

// Config is the on-disk configuration ($VERIDI_HOME/config.toml).
type Config struct {
	API           APIConfig           `toml:"api"`
	Storage       StorageConfig       `toml:"storage"`
	Ledger        LedgerConfig        `toml:"ledger"`
	Payment       PaymentConfig       `toml:"payment"`
	Pool          PoolConfig          `toml:"pool"`
	Notifications NotificationsConfig `toml:"notifications"`
	Issuance      IssuanceConfig      `toml:"issuance"`
	Certificates  CertificatesConfig  `toml:"certificates"`
	Log           LogConfig           `toml:"log"`
	Accounts      []domain.Account    `toml:"accounts"`
}

type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
	Timeout string `toml:"timeout"`
}

type StorageConfig struct {
	Dir string `toml:"dir"`
}

type LedgerConfig struct {
	Timeout string `toml:"timeout"`
}

type PaymentConfig struct {
	Gateway        string  `toml:"gateway"`
	SuccessRate    float64 `toml:"success_rate"`
	Latency        string  `toml:"latency"`
	PricePerCredit string  `toml:"price_per_credit"`
	CurrencySymbol string  `toml:"currency_symbol"`
	Timeout        string  `toml:"timeout"`
}

type PoolConfig struct {
	MaxConcurrent int    `toml:"max_concurrent"`
	AcquireWait   string `toml:"acquire_wait"`
}

type NotificationsConfig struct {
	Capacity    int `toml:"capacity"`
	RecentLimit int `toml:"recent_limit"`
}

type IssuanceConfig struct {
	MaxPerIssue int64 `toml:"max_per_issue"`
}

type CertificatesConfig struct {
	IssuedBy         string `toml:"issued_by"`
	RejectDuplicates bool   `toml:"reject_duplicates"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the default configuration. Accounts are left empty;
// Provision fills them in.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    5001,
			Metrics: true,
			Timeout: "1m",
		},
		Storage: StorageConfig{Dir: filepath.Join(Home(), "data")},
		Ledger:  LedgerConfig{Timeout: "5s"},
		Payment: PaymentConfig{
			Gateway:        "razorpay_mock",
			SuccessRate:    0.9,
			Latency:        "500ms",
			PricePerCredit: "310",
			CurrencySymbol: "₹",
			Timeout:        "5s",
		},
		Pool:          PoolConfig{MaxConcurrent: 8, AcquireWait: "10s"},
		Notifications: NotificationsConfig{Capacity: domain.DefaultNotificationCapacity, RecentLimit: 50},
		Issuance:      IssuanceConfig{MaxPerIssue: 10_000},
		Certificates:  CertificatesConfig{IssuedBy: "State Pollution Control Board"},
		Log:           LogConfig{Level: "info"},
	}
}

// Home returns the Veridi home directory ($VERIDI_HOME or ~/.veridi).
func Home() string {
	if env := os.Getenv("VERIDI_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".veridi")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// LoadConfig reads the config file over the defaults. A missing file yields
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Provision binds an address to every role that has none. It reports
// whether any account was added so the caller can persist the bindings.
func (c *Config) Provision() (bool, error) {
	bound := make(map[domain.Role]bool)
	for _, a := range c.Accounts {
		bound[a.Role] = true
	}
	added := false
	for _, role := range domain.Roles {
		if bound[role] {
			continue
		}
		addr, err := newAddress()
		if err != nil {
			return added, err
		}
		c.Accounts = append(c.Accounts, domain.Account{Address: addr, Role: role})
		added = true
	}
	return added, nil
}

// newAddress returns a random 20-byte hex address.
func newAddress() (string, error) {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate address: %w", err)
	}
	return "0x" + hex.EncodeToString(b[:]), nil
}

// ─── Parsed Values ──────────────────────────────────────────────────────────

// Validate checks every value that is parsed at startup.
func (c Config) Validate() error {
	for name, d := range map[string]string{
		"api.timeout":       c.API.Timeout,
		"ledger.timeout":    c.Ledger.Timeout,
		"payment.timeout":   c.Payment.Timeout,
		"payment.latency":   c.Payment.Latency,
		"pool.acquire_wait": c.Pool.AcquireWait,
	} {
		if _, err := parseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := c.Price(); err != nil {
		return err
	}
	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return fmt.Errorf("payment.success_rate must be within [0, 1], got %v", c.Payment.SuccessRate)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	if _, err := domain.NewDirectory(c.Accounts); err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	return nil
}

// Price returns the configured price per credit.
func (c Config) Price() (decimal.Decimal, error) {
	p, err := decimal.NewFromString(c.Payment.PricePerCredit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("payment.price_per_credit: %w", err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("payment.price_per_credit must be positive, got %s", p)
	}
	return p, nil
}

// parseDuration parses a duration; empty means zero (use the component default).
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Addr returns the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
