package prefixpool

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/state"
)

func newStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store, err := state.NewSQLiteStore(state.DefaultOptions(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustPrefix(s string) netip.Prefix { return netip.MustParsePrefix(s) }

func TestReserve(t *testing.T) {
	pool, err := New(newStore(t), logging.Discard())
	require.NoError(t, err)

	lan, err := pool.Reserve("lan")
	require.NoError(t, err)
	assert.Equal(t, mustPrefix("192.168.1.0/24"), lan)

	guest, err := pool.Reserve("guest")
	require.NoError(t, err)
	assert.Equal(t, mustPrefix("192.168.2.0/24"), guest)

	again, err := pool.Reserve("lan")
	require.NoError(t, err)
	assert.Equal(t, lan, again, "reserving twice returns the same subnet")
}

func TestReserveSkipsExcluded(t *testing.T) {
	pool, err := New(newStore(t), logging.Discard())
	require.NoError(t, err)

	pool.Exclude(mustPrefix("192.168.1.77/24"), mustPrefix("192.168.2.0/23"), mustPrefix("fd00::/64"))

	got, err := pool.Reserve("lan")
	require.NoError(t, err)
	assert.Equal(t, mustPrefix("192.168.4.0/24"), got)
}

func TestReserveReallocatesOnNewConflict(t *testing.T) {
	pool, err := New(newStore(t), logging.Discard())
	require.NoError(t, err)

	first, err := pool.Reserve("lan")
	require.NoError(t, err)

	pool.Exclude(first)
	second, err := pool.Reserve("lan")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.False(t, Conflicts([]netip.Prefix{second}, []netip.Prefix{first}))
}

func TestReservationsPersist(t *testing.T) {
	store := newStore(t)

	pool, err := New(store, logging.Discard())
	require.NoError(t, err)
	lan, err := pool.Reserve("lan")
	require.NoError(t, err)

	reloaded, err := New(store, logging.Discard())
	require.NoError(t, err)
	got, ok := reloaded.Lookup("lan")
	require.True(t, ok)
	assert.Equal(t, lan, got)

	require.NoError(t, reloaded.Release("lan"))
	require.NoError(t, reloaded.Release("lan"))
	assert.Empty(t, reloaded.Reservations())

	fresh, err := New(store, logging.Discard())
	require.NoError(t, err)
	assert.Empty(t, fresh.Reservations())
}

func TestFallsThroughRanges(t *testing.T) {
	pool, err := New(newStore(t), logging.Discard())
	require.NoError(t, err)
	pool.Exclude(mustPrefix("192.168.0.0/16"))

	got, err := pool.Reserve("lan")
	require.NoError(t, err)
	assert.Equal(t, mustPrefix("10.0.1.0/24"), got)
}

func TestExhausted(t *testing.T) {
	pool, err := New(newStore(t), logging.Discard())
	require.NoError(t, err)
	pool.ranges = []netip.Prefix{mustPrefix("192.168.7.0/23")}

	_, err = pool.Reserve("a")
	require.NoError(t, err)
	_, err = pool.Reserve("b")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestConflicts(t *testing.T) {
	a := []netip.Prefix{mustPrefix("10.0.0.0/24")}
	assert.True(t, Conflicts(a, []netip.Prefix{mustPrefix("10.0.0.128/25")}))
	assert.True(t, Conflicts(a, []netip.Prefix{mustPrefix("10.0.0.0/8")}))
	assert.False(t, Conflicts(a, []netip.Prefix{mustPrefix("10.0.1.0/24")}))
	assert.False(t, Conflicts(nil, a))
}
