//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-datasource/config"
)

// OracleOptions configures StartOracle. Zero fields take the defaults below.
type OracleOptions struct {
	ImageTag       string        // 23-slim (gvenzl/oracle-free)
	Password       string        // testpass, shared by SYSTEM and the app user
	Service        string        // FREEPDB1
	AppUser        string        // testuser
	StartupTimeout time.Duration // 180s
}

// StartOracle runs an Oracle Free container for the lifetime of t and returns a
// validated datasource configuration for the application user.
func StartOracle(ctx context.Context, t *testing.T, opts *OracleOptions) config.DatabaseConfig {
	t.Helper()
	skipWithoutDocker(ctx, t)

	o := OracleOptions{ImageTag: "23-slim", Password: "testpass", Service: "FREEPDB1", AppUser: "testuser", StartupTimeout: 180 * time.Second}
	if opts != nil {
		if opts.ImageTag != "" {
			o.ImageTag = opts.ImageTag
		}
		if opts.Password != "" {
			o.Password = opts.Password
		}
		if opts.Service != "" {
			o.Service = opts.Service
		}
		if opts.AppUser != "" {
			o.AppUser = opts.AppUser
		}
		if opts.StartupTimeout > 0 {
			o.StartupTimeout = opts.StartupTimeout
		}
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        fmt.Sprintf("gvenzl/oracle-free:%s", o.ImageTag),
			ExposedPorts: []string{"1521/tcp"},
			Env: map[string]string{
				"ORACLE_PASSWORD":   o.Password,
				"APP_USER":          o.AppUser,
				"APP_USER_PASSWORD": o.Password,
			},
			// the log line can appear before the listener accepts sessions
			WaitingFor: wait.ForAll(
				wait.ForLog("DATABASE IS READY TO USE!"),
				wait.ForListeningPort("1521/tcp"),
			).WithStartupTimeout(o.StartupTimeout),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start Oracle container: %v", err)
	}
	terminateOnCleanup(t, "Oracle", c)

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get Oracle host: %v", err)
	}
	port, err := c.MappedPort(ctx, "1521")
	if err != nil {
		t.Fatalf("failed to get Oracle port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Type:     config.Oracle,
		Host:     host,
		Port:     port.Int(),
		Username: o.AppUser,
		Password: o.Password,
	}
	cfg.Oracle.Service.Name = o.Service
	if err := config.ValidateDatabase("integration", &cfg); err != nil {
		t.Fatalf("container configuration is invalid: %v", err)
	}

	t.Logf("Oracle container ready at %s:%d (service %s, user %s)", host, cfg.Port, o.Service, o.AppUser)
	return cfg
}
