package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"workflow-engine/internal/storage"
)

func TestFactoryRegistered(t *testing.T) {
	assert.True(t, storage.IsSupported("postgres"))
}

func TestCreateRequiresDSN(t *testing.T) {
	_, err := (&Factory{}).Create(storage.Config{Type: "postgres"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	d := dialect{}

	assert.Equal(t, "SELECT 1", d.Rebind("SELECT 1"))
	assert.Equal(t,
		"INSERT INTO t (a, b) VALUES ($1, $2)",
		d.Rebind("INSERT INTO t (a, b) VALUES (?, ?)"))
	assert.Equal(t,
		"UPDATE t SET a = $1 WHERE id = $2 AND b = $3",
		d.Rebind("UPDATE t SET a = ? WHERE id = ? AND b = ?"))
}
