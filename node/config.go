package main

import (
	"fmt"

	"infernode/shared"

	"github.com/joho/godotenv"
)

// Config holds the node configuration loaded from the environment.
type Config struct {
	ListenAddr      string
	NodePrivateKey  string // hex-encoded secp256k1 key; generated when empty in development
	Development     bool
	JobTicketSecret string // HMAC secret for job ticket verification
	RequireTickets  bool
}

// LoadConfig loads configuration from .env (when present) and the process
// environment.
func LoadConfig() (*Config, error) {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:      shared.GetEnvOrDefault("LISTEN_ADDR", ":8080"),
		NodePrivateKey:  shared.GetEnvOrDefault("NODE_PRIVATE_KEY", ""),
		Development:     shared.GetEnvBoolOrDefault("DEVELOPMENT", false),
		JobTicketSecret: shared.GetEnvOrDefault("JOB_TICKET_SECRET", ""),
		RequireTickets:  shared.GetEnvBoolOrDefault("REQUIRE_JOB_TICKETS", false),
	}

	if cfg.NodePrivateKey == "" && !cfg.Development {
		return nil, fmt.Errorf("NODE_PRIVATE_KEY is required outside development mode")
	}
	if cfg.RequireTickets && cfg.JobTicketSecret == "" {
		return nil, fmt.Errorf("JOB_TICKET_SECRET is required when REQUIRE_JOB_TICKETS is set")
	}

	return cfg, nil
}
