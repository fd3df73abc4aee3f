package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faasbill/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add bills table", "add_bills_table"},
		{"Add-Bills-Table", "add_bills_table"},
		{"ADD_BILLS_TABLE", "add_bills_table"},
		{"add__bills__table", "add_bills_table"},
		{"Add Index 123", "add_index_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0o644))
	}
}

func TestCreateMigration_NumbersAfterHighestVersion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000001_init_schema.up.sql", "000001_init_schema.down.sql",
		"000007_add_payment_index.up.sql", "000007_add_payment_index.down.sql",
	)

	mf, err := CreateMigration(dir, "add invoice number", "Invoice numbering for bills")
	require.NoError(t, err)

	assert.Equal(t, "000008", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000008_add_invoice_number.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000008_add_invoice_number.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add invoice number")
	assert.Contains(t, string(up), "Invoice numbering for bills")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")
}

func TestCreateMigration_EmptyDirectoryStartsAtOne(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsUnusableName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestCreateMigration_DoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	// a stray down file for the next number blocks creation
	writeFiles(t, dir, "000001_init.up.sql", "000002_next.down.sql")

	_, err := CreateMigration(dir, "next", "")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "000002_next.up.sql"))
	assert.True(t, os.IsNotExist(statErr), "up file is removed when the down file fails")
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000003_add_usage_index.up.sql", "000003_add_usage_index.down.sql",
		"000001_init_schema.up.sql", "000001_init_schema.down.sql",
		"000002_add_payments.up.sql", "000002_add_payments.down.sql",
		"README.md", ".gitkeep",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_init_schema",
		"000002_add_payments",
		"000003_add_usage_index",
	}, names)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	names, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEmbeddedSchema_HasPairedFiles(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok {
			ups[base] = true
		}
		if base, ok := strings.CutSuffix(e.Name(), ".down.sql"); ok {
			downs[base] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
	assert.True(t, ups["000001_init_schema"])

	schema, err := fs.ReadFile(migrations.FS, "000001_init_schema.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"tenants", "services", "pricing_plans", "usage_events", "usage_aggregates", "bills", "payments"} {
		assert.Contains(t, string(schema), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "embedded", Embedded().String())
	assert.Equal(t, "file:///srv/migrations", Dir("/srv/migrations").String())
}
