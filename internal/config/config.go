package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
	Auction        AuctionConfig        `yaml:"auction"`
	Prediction     PredictionConfig     `yaml:"prediction"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "sqlx" or "memory"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// AuctionConfig holds default auction rules. Amounts are whole currency units
// and must be multiples of MinBidIncrement where noted.
type AuctionConfig struct {
	// MinBidIncrement is the base step between consecutive bids.
	MinBidIncrement int64 `yaml:"min_bid_increment"`
	// IncrementTierThreshold is the amount at which the step widens.
	IncrementTierThreshold int64 `yaml:"increment_tier_threshold"`
	// TierBidIncrement is the step used once bidding reaches the threshold.
	TierBidIncrement int64 `yaml:"tier_bid_increment"`
	// MandatoryTeamSize is how many players every bidder must end up with.
	MandatoryTeamSize int `yaml:"mandatory_team_size"`
	// MinPerPlayerReserve is the minimum purse that must remain available
	// for every unfilled mandatory slot.
	MinPerPlayerReserve int64 `yaml:"min_per_player_reserve"`
	// TotalPurse is each bidder's starting purse.
	TotalPurse int64 `yaml:"total_purse"`
	// CommitWait bounds how long a bid submission may wait for the
	// per-auction commit gate before reporting a conflict.
	CommitWait time.Duration `yaml:"commit_wait"`
}

// PredictionConfig holds the tunable weights of the bid prediction engine.
// The exact values are heuristics, not business rules; they are surfaced
// here so operators can tune them without a rebuild.
type PredictionConfig struct {
	PurseFractionWeight  float64       `yaml:"purse_fraction_weight"`
	RoleNeedWeight       float64       `yaml:"role_need_weight"`
	UtilizationBonusLow  float64       `yaml:"utilization_bonus_low"` // spent < 30%
	UtilizationBonusMid  float64       `yaml:"utilization_bonus_mid"` // spent < 60%
	SpendingPatternBonus float64       `yaml:"spending_pattern_bonus"`
	EarlyAuctionBonus    float64       `yaml:"early_auction_bonus"`
	SavingPenalty        float64       `yaml:"saving_penalty"`
	SupplyAdjustment     float64       `yaml:"supply_adjustment"`
	CeilingPurseFraction float64       `yaml:"ceiling_purse_fraction"`
	CeilingBidMultiple   float64       `yaml:"ceiling_bid_multiple"`
	CeilingHardCap       int64         `yaml:"ceiling_hard_cap"`
	EnhancerURL          string        `yaml:"enhancer_url"`
	EnhancerTimeout      time.Duration `yaml:"enhancer_timeout"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "sqlx",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctiond-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
		Auction: AuctionConfig{
			MinBidIncrement:        1000,
			IncrementTierThreshold: 10000,
			TierBidIncrement:       2000,
			MandatoryTeamSize:      12,
			MinPerPlayerReserve:    1000,
			TotalPurse:             120000,
			CommitWait:             3 * time.Second,
		},
		Prediction: PredictionConfig{
			PurseFractionWeight:  0.35,
			RoleNeedWeight:       0.20,
			UtilizationBonusLow:  0.15,
			UtilizationBonusMid:  0.08,
			SpendingPatternBonus: 0.05,
			EarlyAuctionBonus:    0.05,
			SavingPenalty:        0.10,
			SupplyAdjustment:     0.05,
			CeilingPurseFraction: 0.50,
			CeilingBidMultiple:   3.0,
			CeilingHardCap:       60000,
			EnhancerTimeout:      5 * time.Second,
		},
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlx", "memory":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"sqlx\" or \"memory\"", c.Database.Driver)
	}

	a := c.Auction
	if a.MinBidIncrement <= 0 {
		return fmt.Errorf("auction.min_bid_increment must be positive, got %d", a.MinBidIncrement)
	}
	if a.TierBidIncrement < a.MinBidIncrement {
		return fmt.Errorf("auction.tier_bid_increment (%d) must not be below min_bid_increment (%d)",
			a.TierBidIncrement, a.MinBidIncrement)
	}
	if a.MandatoryTeamSize < 2 {
		return fmt.Errorf("auction.mandatory_team_size must be at least 2, got %d", a.MandatoryTeamSize)
	}
	if a.MinPerPlayerReserve < 0 {
		return fmt.Errorf("auction.min_per_player_reserve must not be negative, got %d", a.MinPerPlayerReserve)
	}
	if a.TotalPurse <= 0 {
		return fmt.Errorf("auction.total_purse must be positive, got %d", a.TotalPurse)
	}

	p := c.Prediction
	if p.PurseFractionWeight < 0 || p.RoleNeedWeight < 0 {
		return fmt.Errorf("prediction weights must not be negative")
	}
	if p.CeilingPurseFraction <= 0 || p.CeilingPurseFraction > 1 {
		return fmt.Errorf("prediction.ceiling_purse_fraction must be in (0, 1], got %v", p.CeilingPurseFraction)
	}
	return nil
}
