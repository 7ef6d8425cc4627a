package preferences

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// openers builds every backend in a temp dir.
func openers() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			t.Helper()

			return NewFileStore(filepath.Join(t.TempDir(), "prefs.json"))
		},
		"sqlite": func(t *testing.T) Store {
			t.Helper()

			s, err := Open("sqlite", filepath.Join(t.TempDir(), "nested", "prefs.db"))
			require.NoError(t, err)

			return s
		},
	}
}

// TestStore_GetSet checks round trips, overwrites and path scoping on every backend.
func TestStore_GetSet(t *testing.T) {
	t.Parallel()

	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := open(t)

			t.Cleanup(func() { require.NoError(t, s.Close()) })

			_, ok, err := s.Get(ctx, KeyDestination)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.Set(ctx, KeyDestination, "5512345678"))
			require.NoError(t, s.Set(ctx, KeyDisplayName, "Ana"))
			require.NoError(t, s.Set(ctx, KeyDestination, "5587654321"))

			v, ok, err := s.Get(ctx, KeyDestination)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "5587654321", v)

			// Scoped values do not leak into the default scope.
			require.NoError(t, s.Set(ctx, KeyDisplayName, "Luis", WithPath("/desk/2")))

			v, _, err = s.Get(ctx, KeyDisplayName)
			require.NoError(t, err)
			require.Equal(t, "Ana", v)

			v, ok, err = s.Get(ctx, KeyDisplayName, WithPath("desk/2/"))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "Luis", v)

			_, ok, err = s.Get(ctx, KeyDestination, WithPath("/desk/2"))
			require.NoError(t, err)
			require.False(t, ok)

			// Empty string is a value, not absence.
			require.NoError(t, s.Set(ctx, "note", ""))

			v, ok, err = s.Get(ctx, "note")
			require.NoError(t, err)
			require.True(t, ok)
			require.Empty(t, v)

			require.ErrorIs(t, s.Set(ctx, " ", "x"), ErrEmptyKey)

			_, _, err = s.Get(ctx, "")
			require.ErrorIs(t, err, ErrEmptyKey)
		})
	}
}

// TestFileStore_Persists reopens the file and reads earlier values.
func TestFileStore_Persists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.json")

	require.NoError(t, NewFileStore(path).Set(ctx, KeyDestination, "5512345678"))

	v, ok, err := NewFileStore(path).Get(ctx, KeyDestination)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "5512345678", v)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"destination"`)
}

// TestFileStore_Corrupt reports a decode error.
func TestFileStore_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, _, err := NewFileStore(path).Get(context.Background(), KeyDestination)
	require.Error(t, err)
}

// TestOpen_UnknownBackend rejects unsupported backends.
func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open("etcd", "x")
	require.Error(t, err)
}

// TestCleanPath normalizes scopes.
func TestCleanPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/", cleanPath(""))
	require.Equal(t, "/", cleanPath("/"))
	require.Equal(t, "/a/b", cleanPath("a/b/"))
	require.Equal(t, "/a", cleanPath("/a/../a"))
}
