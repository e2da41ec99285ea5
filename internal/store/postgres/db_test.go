package postgres

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig_Apply(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	PoolConfig{MaxOpenConns: 7, ConnMaxLifetime: time.Minute}.apply(sqlDB)
	assert.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)

	// Zero keeps what is already set.
	PoolConfig{}.apply(sqlDB)
	assert.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
