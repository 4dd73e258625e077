//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MySQLContainer wraps a testcontainers MySQL instance.
type MySQLContainer struct {
	Container testcontainers.Container
	DSN       string
}

// NewMySQLContainer starts MySQL 8 with an empty identix database.
func NewMySQLContainer(t *testing.T) *MySQLContainer {
	t.Helper()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.0",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "identix",
				"MYSQL_DATABASE":      "identix",
			},
			WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get mysql host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get mysql port: %v", err)
	}

	mc := &MySQLContainer{
		Container: container,
		DSN:       fmt.Sprintf("root:identix@tcp(%s:%s)/identix?charset=utf8mb4&parseTime=True&loc=UTC", host, port.Port()),
	}
	return mc
}
