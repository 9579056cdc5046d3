package kvstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	s := New()
	s.Insert("user", "pass")

	v, ok := s.Get("user")
	require.True(t, ok)
	require.Equal(t, "pass", v)

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestInsertDuplicateKeyReplacesValueInPlace(t *testing.T) {
	s := New()
	s.Insert("k", "v1")
	s.Insert("k", "v2")

	v, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

func TestRemove(t *testing.T) {
	s := New()
	s.Insert("k", "v")
	require.True(t, s.Remove("k"))
	require.False(t, s.Remove("k"))

	_, ok := s.Get("k")
	require.False(t, ok)
}

func TestSeedDemoCredentials(t *testing.T) {
	s := New()
	SeedDemoCredentials(s)

	v, ok := s.Get("admin")
	require.True(t, ok)
	require.Equal(t, "123456", v)

	v, ok = s.Get("root")
	require.True(t, ok)
	require.Equal(t, "123456", v)
}

func TestDumpAndLoadRoundTrip(t *testing.T) {
	s := New()
	s.Insert("alpha", "1")
	s.Insert("beta", "2")
	s.Insert("gamma", "3")

	path := filepath.Join(t.TempDir(), "store.txt")
	require.NoError(t, s.Dump(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))

	for _, k := range []string{"alpha", "beta", "gamma"} {
		want, _ := s.Get(k)
		got, ok := loaded.Get(k)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	s := New()
	err := s.Load(filepath.Join(os.TempDir(), "does-not-exist-reactord-kvstore"))
	require.Error(t, err)
}

func TestConcurrentInsertGetIsSafe(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%26))
			s.Insert(key, "v")
			s.Get(key)
		}(i)
	}
	wg.Wait()
}
