package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rahulvdm/auction-engine/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
database:
  host: "db.example.com"
  port: 5433
  user: "auctiond"
  password: "secret"
  dbname: "auctions"
  sslmode: "require"
  driver: "sqlx"
server:
  port: 9090
telemetry:
  service_name: "my-auctioneer"
  otlp_endpoint: "localhost:4318"
auction:
  min_bid_increment: 500
  increment_tier_threshold: 5000
  tier_bid_increment: 1000
  mandatory_team_size: 15
  total_purse: 90000
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Telemetry.ServiceName != "my-auctioneer" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-auctioneer")
				}
				if cfg.Auction.MinBidIncrement != 500 {
					t.Errorf("got min increment %d, want %d", cfg.Auction.MinBidIncrement, 500)
				}
				if cfg.Auction.MandatoryTeamSize != 15 {
					t.Errorf("got team size %d, want %d", cfg.Auction.MandatoryTeamSize, 15)
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
database:
  user: "auctiond"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Host != "localhost" {
					t.Errorf("got db host %q, want %q", cfg.Database.Host, "localhost")
				}
				if cfg.Database.Driver != "sqlx" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "sqlx")
				}
				if cfg.Auction.MinBidIncrement != 1000 {
					t.Errorf("got min increment %d, want %d", cfg.Auction.MinBidIncrement, 1000)
				}
				if cfg.Auction.IncrementTierThreshold != 10000 {
					t.Errorf("got tier threshold %d, want %d", cfg.Auction.IncrementTierThreshold, 10000)
				}
				if cfg.Prediction.PurseFractionWeight != 0.35 {
					t.Errorf("got purse weight %v, want %v", cfg.Prediction.PurseFractionWeight, 0.35)
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "unknown driver rejected",
			yaml: `
database:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "tier increment below base increment rejected",
			yaml: `
auction:
  min_bid_increment: 2000
  tier_bid_increment: 1000
`,
			wantErr: true,
		},
		{
			name: "non-positive purse rejected",
			yaml: `
auction:
  total_purse: 0
`,
			wantErr: true,
		},
		{
			name: "ceiling purse fraction out of range rejected",
			yaml: `
prediction:
  ceiling_purse_fraction: 1.5
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatalf("writing temp config: %v", err)
			}

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && err == nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "svc",
		Password: "pw",
		DBName:   "auctions",
		SSLMode:  "disable",
	}
	want := "host=db.internal port=5432 user=svc password=pw dbname=auctions sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
