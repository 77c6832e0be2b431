//go:build integration

// Package containers starts disposable database servers for integration tests and
// hands back datasource configurations pointing at them.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"

	"github.com/gaborage/go-datasource/logger"
)

// skipWithoutDocker skips t when no Docker daemon answers.
func skipWithoutDocker(ctx context.Context, t *testing.T) {
	t.Helper()

	provider, err := testcontainers.NewDockerProvider()
	if err == nil {
		defer provider.Close()
		_, err = provider.DaemonHost(ctx)
	}
	if err != nil {
		t.Skipf("Docker is not available, skipping integration test: %v", err)
	}
}

func terminateOnCleanup(t *testing.T, name string, c testcontainers.Container) {
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate %s container: %v", name, err)
		}
	})
}

func masked(dsn string) string {
	return logger.NewSensitiveDataFilter(nil).FilterString("dsn", dsn)
}
