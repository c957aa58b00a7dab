package db

import (
	"path/filepath"
	"testing"

	"eviction_intake_go/config"
	"eviction_intake_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTursoDSN(t *testing.T) {
	assert.Equal(t, "libsql://x.turso.io", tursoDSN("libsql://x.turso.io", ""))
	assert.Equal(t, "libsql://x.turso.io?authToken=tok", tursoDSN("libsql://x.turso.io", "tok"))
	assert.Equal(t, "libsql://x.turso.io?tls=1&authToken=tok", tursoDSN("libsql://x.turso.io?tls=1", "tok"))
}

func TestInitializeLocal(t *testing.T) {
	cfg := &config.Config{
		DBPath:      filepath.Join(t.TempDir(), "intake.db"),
		Environment: "test",
	}

	require.NoError(t, Initialize(cfg))
	t.Cleanup(func() {
		Close()
		DB = nil
	})

	require.NoError(t, AutoMigrate(&models.CaseSubmission{}, &models.SyncOutcome{}, &models.AuditLog{}))
	assert.True(t, DB.Migrator().HasTable("case_submissions"))
	assert.True(t, DB.Migrator().HasTable("audit_logs"))
}

func TestAutoMigrateWithoutDatabase(t *testing.T) {
	DB = nil
	assert.Error(t, AutoMigrate(&models.CaseSubmission{}))
	assert.NoError(t, Close())
}
