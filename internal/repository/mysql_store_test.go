package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/ticket-booking/internal/database"
)

// startMySQLContainer boots a throwaway MySQL server and returns a DSN
// for it.
func startMySQLContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := tcmysql.RunContainer(ctx,
		testcontainers.WithImage("mysql:8.0.36"),
		tcmysql.WithDatabase("tickets"),
		tcmysql.WithUsername("app"),
		tcmysql.WithPassword("password"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=true", "loc=UTC")
	require.NoError(t, err)
	return dsn
}

func TestMySQLStore(t *testing.T) {
	if os.Getenv("BOOKING_INTEGRATION") != "1" {
		t.Skip("set BOOKING_INTEGRATION=1 to run against a MySQL container")
	}
	db, err := database.Open(startMySQLContainer(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.InitializeSchema(context.Background(), db))

	testStoreContract(t, NewMySQLStore(db))
}
