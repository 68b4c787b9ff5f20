package database

import (
	"io/fs"
	"path/filepath"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.Len(t, ups, 2)
	assert.Equal(t, len(ups), len(downs))
}

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.Config{DBDriver: DriverSQLite, DBSQLitePath: filepath.Join(t.TempDir(), "board.db")}

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	assert.True(t, db.Migrator().HasTable(&model.Task{}))
	assert.True(t, db.Migrator().HasIndex(&model.Task{}, "idx_tasks_partition_order"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	_, err := Migrate(&config.Config{DBDriver: DriverSQLite}, "up")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=require", DSN(cfg))
}
