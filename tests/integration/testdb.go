// Package integration runs the billing stack against real PostgreSQL and
// Redis containers started with testcontainers.
package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/faasbill/backend/internal/infrastructure/logger"
	"github.com/faasbill/backend/internal/infrastructure/migration"
	"github.com/faasbill/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// one migrated container per package run
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated PostgreSQL database
type TestDB struct {
	*persistence.Database
	DSN string
	t   *testing.T
}

func skipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
}

// NewTestDB connects to the shared container, starting and migrating it on
// first use. Tables are truncated before the test runs.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipIfShort(t)

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("faasbill_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		migrateSchema(t, dsn)
		sharedContainer = container
		sharedContainerDSN = dsn
	}

	gormLevel := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormLevel = gormlogger.Info
	}
	db, err := persistence.Open(gormpostgres.Open(sharedContainerDSN), &config.DatabaseConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
	}, persistence.WithLogger(logger.NewGormLogger(zap.NewNop(), gormLevel)))
	require.NoError(t, err, "Failed to connect to database")

	tdb := &TestDB{Database: db, DSN: sharedContainerDSN, t: t}
	t.Cleanup(func() {
		_ = tdb.Close()
	})
	tdb.CleanTables()
	return tdb
}

// migrateSchema applies the embedded migrations, exactly as cmd/migrate does
func migrateSchema(t *testing.T, dsn string) {
	t.Helper()
	m, err := migration.NewFromURL(dsn, migration.Embedded(), zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to create migrator")
	defer m.Close()
	require.NoError(t, m.Up(), "Failed to run migrations")

	version, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.NotZero(t, version)
}

// CleanTables truncates every table except the migration bookkeeping
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate %s", table)
	}
}
