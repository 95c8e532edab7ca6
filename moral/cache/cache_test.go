package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`)))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":2}`)))
	got, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))
}

func TestMemory(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	exerciseStore(t, m)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_ZeroValueAndCopies(t *testing.T) {
	t.Parallel()
	var m Memory
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf))
	buf[0] = 'x'
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, "shared", []byte{byte(i)})
			_, _, _ = m.Get(ctx, "shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, m.Len())
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()
	got, ok, err := s2.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":2}`, string(got))
}

func TestOpen_Locations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Open(ctx, "none", 0)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, "", 0)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, "memory", 0)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, "sqlite:"+filepath.Join(t.TempDir(), "c.db"), 0)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	for _, bad := range []string{"sqlite:", "redis:", "bogus:x"} {
		_, err := Open(ctx, bad, 0)
		assert.Error(t, err, bad)
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	r, err := DialRedis(context.Background(), addr, time.Minute)
	require.NoError(t, err)
	defer r.Close()
	r.prefix = "values-tools:test:" + t.Name() + ":"
	exerciseStore(t, r)
}
