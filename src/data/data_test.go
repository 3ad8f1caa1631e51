package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParam(t *testing.T) {
	assert.Equal(t, "u:p@/db?parseTime=true", ensureParam("u:p@/db", "parseTime", "true"))
	assert.Equal(t, "u:p@/db?a=1&parseTime=true", ensureParam("u:p@/db?a=1", "parseTime", "true"))
	assert.Equal(t, "u:p@/db?parseTime=false", ensureParam("u:p@/db?parseTime=false", "parseTime", "true"))
}

func TestDSNFallsBackToSQLite(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("MYSQL_DSN", "")
	assert.Equal(t, DefaultDSN, DSN())

	t.Setenv("MYSQL_DSN", "u:p@tcp(db)/curator")
	assert.Equal(t, "u:p@tcp(db)/curator", DSN())

	t.Setenv("DATABASE_DSN", "sqlite:/tmp/x.db")
	assert.Equal(t, "sqlite:/tmp/x.db", DSN())
}

func TestConnectRejectsEmpty(t *testing.T) {
	_, err := Connect("")
	assert.Error(t, err)
}

func TestSettingsRoundTrip(t *testing.T) {
	db, err := Connect("sqlite:file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&Setting{Name: "curator_emoji", Value: "🔭", Active: 1}).Error)
	require.NoError(t, db.Create(&Setting{Name: "disabled", Value: "x"}).Error)
	require.NoError(t, db.Model(&Setting{}).Where("name = ?", "disabled").Update("active", 0).Error)
	require.NoError(t, LoadSettings(db))
	assert.Equal(t, "🔭", GetSetting("curator_emoji"))
	assert.Empty(t, GetSetting("disabled"))

	require.NoError(t, PutSetting(db, "curator_emoji", "⭐"))
	assert.Equal(t, "⭐", GetSetting("curator_emoji"))
	require.NoError(t, LoadSettings(db))
	assert.Equal(t, "⭐", GetSetting("curator_emoji"))
}
