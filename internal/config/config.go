// Package config loads node configuration from the environment, with
// viper providing defaults and env-var binding. It also holds helpers
// to read and watch an optional peers.yaml bootstrap file; Load does
// not read that file, and no part of the node calls those helpers.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultBootstrapPort = 8009
	defaultMainCycle     = 900 * time.Second
	defaultIdleSuite     = 30 * time.Second
)

// Config is the resolved configuration for one node process.
type Config struct {
	Port                int
	BootstrapPeer       string
	DBPath              string
	MainCycleInterval   time.Duration
	IdleSuiteInterval   time.Duration
	PeersFile           string // optional peers.yaml path; Load leaves it ""
	OTLPEndpoint        string // optional OTLP/HTTP collector, "" means stdout exporters only
	AdvertisedURL       string
}

// Load resolves configuration from the environment. role is "bootstrap"
// for the default port (8009); any other role requires the caller to
// have already chosen a port (e.g. via the PORT env var or a CLI flag).
func Load(role string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	defaultPort := 0
	if role == "bootstrap" {
		defaultPort = defaultBootstrapPort
	}
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("BOOTSTRAP_PEER", "")
	v.SetDefault("AXIOM_MAIN_CYCLE_INTERVAL", int(defaultMainCycle.Seconds()))
	v.SetDefault("AXIOM_IDLE_SUITE_INTERVAL", int(defaultIdleSuite.Seconds()))
	v.SetDefault("AXIOM_OTLP_ENDPOINT", "")

	port := v.GetInt("PORT")
	if port == 0 {
		return nil, fmt.Errorf("config: PORT must be set for non-bootstrap nodes")
	}

	dbPath := v.GetString("AXIOM_DB_PATH")
	if dbPath == "" {
		if port == defaultBootstrapPort {
			dbPath = "axiom_ledger.db"
		} else {
			dbPath = fmt.Sprintf("axiom_ledger_%d.db", port)
		}
	}

	mainCycleSec := v.GetInt("AXIOM_MAIN_CYCLE_INTERVAL")
	idleSuiteSec := v.GetInt("AXIOM_IDLE_SUITE_INTERVAL")

	cfg := &Config{
		Port:              port,
		BootstrapPeer:     v.GetString("BOOTSTRAP_PEER"),
		DBPath:            dbPath,
		MainCycleInterval: time.Duration(mainCycleSec) * time.Second,
		IdleSuiteInterval: time.Duration(idleSuiteSec) * time.Second,
		OTLPEndpoint:      v.GetString("AXIOM_OTLP_ENDPOINT"),
		AdvertisedURL:     fmt.Sprintf("http://localhost:%d", port),
	}
	if cfg.MainCycleInterval <= 0 {
		cfg.MainCycleInterval = defaultMainCycle
	}
	if cfg.IdleSuiteInterval <= 0 {
		cfg.IdleSuiteInterval = defaultIdleSuite
	}
	return cfg, nil
}

// ParseDurationSeconds is a small helper kept alongside Load for callers
// (e.g. cmd/axiomd flags) that need to parse a seconds value the same
// way Load does.
func ParseDurationSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration seconds %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}
