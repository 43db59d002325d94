package main

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"lexcase-backend/config"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
    -- Tenant namespace; empty for single user deployments
    tenant TEXT NOT NULL DEFAULT '',

    -- Collection key: cases, savedDocuments, chat_{caseId}, chat_{caseId}_{sessionId}, chat_sessions_{caseId}
    key TEXT NOT NULL,

    -- Monotonic revision supplied by the writing client
    revision BIGINT NOT NULL CHECK (revision >= 0),

    -- JSON array of entities
    data JSONB NOT NULL,

    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (tenant, key)
);

CREATE INDEX IF NOT EXISTS idx_records_tenant_updated ON records (tenant, updated_at DESC);
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found, using environment variables")
	}

	cfg := config.Load()

	pool, err := pgxpool.New(context.Background(), cfg.Server.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		log.Fatalf("Failed to create records table: %v", err)
	}
	log.Println("✓ records table ready")

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		log.Fatalf("Failed to verify records table: %v", err)
	}
	log.Printf("✓ records table holds %d records", count)
}
