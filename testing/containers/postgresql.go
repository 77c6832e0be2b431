//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-datasource/config"
)

// PostgreSQLOptions configures StartPostgreSQL. Zero fields take the defaults below.
type PostgreSQLOptions struct {
	ImageTag       string // 17-alpine
	Username       string // testuser
	Password       string // testpass
	Database       string // testdb
	InitScripts    []string
	StartupTimeout time.Duration // 60s
}

func (o *PostgreSQLOptions) withDefaults() PostgreSQLOptions {
	out := PostgreSQLOptions{
		ImageTag:       "17-alpine",
		Username:       "testuser",
		Password:       "testpass",
		Database:       "testdb",
		StartupTimeout: 60 * time.Second,
	}
	if o == nil {
		return out
	}
	if o.ImageTag != "" {
		out.ImageTag = o.ImageTag
	}
	if o.Username != "" {
		out.Username = o.Username
	}
	if o.Password != "" {
		out.Password = o.Password
	}
	if o.Database != "" {
		out.Database = o.Database
	}
	if o.StartupTimeout > 0 {
		out.StartupTimeout = o.StartupTimeout
	}
	out.InitScripts = o.InitScripts
	return out
}

// StartPostgreSQL runs a PostgreSQL container for the lifetime of t and returns a
// validated datasource configuration for it. The test is skipped without Docker.
func StartPostgreSQL(ctx context.Context, t *testing.T, opts *PostgreSQLOptions) config.DatabaseConfig {
	t.Helper()
	skipWithoutDocker(ctx, t)

	o := opts.withDefaults()
	pg, err := postgres.Run(ctx,
		fmt.Sprintf("postgres:%s", o.ImageTag),
		postgres.WithDatabase(o.Database),
		postgres.WithUsername(o.Username),
		postgres.WithPassword(o.Password),
		postgres.WithInitScripts(o.InitScripts...),
		testcontainers.WithWaitStrategy(
			// postgres restarts once after initdb
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(o.StartupTimeout),
		),
	)
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	terminateOnCleanup(t, "PostgreSQL", pg)

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get PostgreSQL host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get PostgreSQL port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Type:     config.PostgreSQL,
		Host:     host,
		Port:     port.Int(),
		Database: o.Database,
		Username: o.Username,
		Password: o.Password,
	}
	if err := config.ValidateDatabase("integration", &cfg); err != nil {
		t.Fatalf("container configuration is invalid: %v", err)
	}

	if dsn, err := pg.ConnectionString(ctx, "sslmode=disable"); err == nil {
		t.Logf("PostgreSQL container ready at %s", masked(dsn))
	}
	return cfg
}
