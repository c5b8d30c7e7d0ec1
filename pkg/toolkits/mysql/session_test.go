package mysql

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveSession_OmitsPassword(t *testing.T) {
	kit := newTestToolkit(&fakeRunner{})
	kit.SetActiveTables([]string{"orders"})

	path := filepath.Join(t.TempDir(), "session.json")
	state, err := kit.SaveSession(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", state.Host)
	assert.Equal(t, []string{"orders"}, state.ActiveTables)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, strings.ToLower(string(data)), "password")
}

func TestLoadSession_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	saved := newTestToolkit(&fakeRunner{})
	saved.SetActiveTables([]string{"orders", "users"})
	_, err := saved.SaveSession(path)
	require.NoError(t, err)

	loaded := New(nil, WithRunner(&fakeRunner{}))
	state, err := loaded.LoadSession(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", state.Host)
	assert.Equal(t, 3306, state.Port)
	assert.Equal(t, "reader", state.User)
	assert.Equal(t, "shop", state.Database)
	assert.Equal(t, []string{"orders", "users"}, state.ActiveTables)

	conn := loaded.Conn()
	assert.Equal(t, "db.internal", conn.Host)
	assert.Empty(t, conn.Password, "password never persists across sessions")

	selection := loaded.ActiveSelection()
	assert.Equal(t, []string{"orders", "users"}, selection.Tables)
}

func TestLoadSession_MissingFile(t *testing.T) {
	kit := New(nil, WithRunner(&fakeRunner{}))

	_, err := kit.LoadSession(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestLoadSession_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	kit := New(nil, WithRunner(&fakeRunner{}))
	_, err := kit.LoadSession(path)
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}
