package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratesIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learned.db")

	conn, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn, err = Open(path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`INSERT INTO generations (id, session_id, action, provider, model, created_at)
		VALUES ('g1', 's1', 'quiz', 'gemini', 'gemini-2.5-flash', ?)`, time.Now().UTC())
	require.NoError(t, err)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM generations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestActionConstraint(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "learned.db"))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`INSERT INTO generations (id, session_id, action, provider, model, created_at)
		VALUES ('g1', 's1', 'translate', 'gemini', 'm', ?)`, time.Now().UTC())
	assert.Error(t, err)
}
