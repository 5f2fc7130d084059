package database

import (
	"context"
	"testing"
	"testing/fstest"

	"kinship/internal/config"
	"kinship/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, configurePool(db, &config.Config{DBMaxOpenConns: 10, DBMaxIdleConns: 2}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestDSN_DefaultsSSLMode(t *testing.T) {
	dsn := DSN(&config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "kinship"})
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "dbname=kinship")
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "000001_init", all[0].String())
	assert.Contains(t, all[0].UpScript, "friendships_status_check")
	assert.Contains(t, all[0].UpScript, "posts_privacy_check")
	assert.Contains(t, all[0].UpScript, "friendships_sender_id_receiver_id_key")
	assert.Contains(t, all[0].DownScript, "DROP TABLE IF EXISTS accounts")

	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"m/000002_second.down.sql": {Data: []byte("DROP TABLE b;")},
		"m/000001_first.up.sql":    {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"m/000001_first.down.sql":  {Data: []byte("DROP TABLE a;")},
		"m/README.md":              {Data: []byte("ignored")},
	}
	loaded, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "first", loaded[0].Name)
	assert.Equal(t, "second", loaded[1].Name)

	missingDown := fstest.MapFS{"m/000001_first.up.sql": {Data: []byte("SELECT 1;")}}
	_, err = LoadMigrations(missingDown, "m")
	assert.Error(t, err)
}

func TestRunMigrations_AppliesPendingOnce(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	registered := []Migration{
		{Version: 1, Name: "first", UpScript: "CREATE TABLE a (id INTEGER);", DownScript: "DROP TABLE a;"},
		{Version: 2, Name: "second", UpScript: "CREATE TABLE b (id INTEGER);", DownScript: "DROP TABLE b;"},
	}

	require.NoError(t, runMigrations(ctx, db, registered))
	require.NoError(t, runMigrations(ctx, db, registered))

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.True(t, db.Migrator().HasTable("b"))

	require.NoError(t, NewMigrationStore(db).RevertMigration(ctx, registered[1]))
	assert.False(t, db.Migrator().HasTable("b"))
}

func TestRunMigrations_FailedScriptIsNotRecorded(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	broken := []Migration{{Version: 1, Name: "broken", UpScript: "CREATE TABL nope;", DownScript: ""}}

	assert.Error(t, runMigrations(ctx, db, broken))
	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7, 3}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003, 000007")
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name            string
		mode, env       string
		wantSQL, wantAM bool
		wantErr         bool
	}{
		{"hybrid dev", "", "development", true, true, false},
		{"hybrid prod", "hybrid", "production", true, false, false},
		{"sql only", "sql", "development", true, false, false},
		{"auto dev", "auto", "test", false, true, false},
		{"auto prod refused", "auto", "staging", false, false, true},
		{"unknown", "magic", "development", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planSchema(&config.Config{DBSchemaMode: tt.mode, Env: tt.env})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.sql)
			assert.Equal(t, tt.wantAM, plan.auto)
		})
	}
}

func TestApplySchema_AutoModeCreatesTables(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, ApplySchema(context.Background(), db, &config.Config{DBSchemaMode: "auto", Env: "test"}))
	for _, table := range []string{"accounts", "profiles", "posts", "friendships"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	status, err := GetSchemaStatus(context.Background(), db, &config.Config{DBSchemaMode: "auto", Env: "test"})
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.MissingConstraints)
}

func TestApplySchema_AutoModeGuardsFriendshipPairs(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, ApplySchema(context.Background(), db, &config.Config{DBSchemaMode: "auto", Env: "test"}))

	a, b := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&models.Friendship{SenderID: a, ReceiverID: b}).Error)
	assert.Error(t, db.Create(&models.Friendship{SenderID: b, ReceiverID: a}).Error, "reverse request is the same pair")
	assert.Error(t, db.Create(&models.Friendship{SenderID: a, ReceiverID: a}).Error, "no self friendship")
}

func TestMissingConstraints_ReportsPlainAutoMigrate(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.AutoMigrate(PersistentModels()...))
	assert.Equal(t, []string{"friendships_pair_key"}, MissingConstraints(context.Background(), db))
}
