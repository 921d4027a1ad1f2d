// Package prefixpool hands out non-overlapping private IPv4 subnets to
// managers that need an address range, such as the LAN bridge.
//
// Reservations are keyed by owner name and persisted in the state store so a
// restarted daemon gives every owner the same subnet back.
package prefixpool

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/state"
)

// DefaultBits is the size of a reserved subnet.
const DefaultBits = 24

// ErrExhausted is returned when no candidate subnet is free.
var ErrExhausted = errors.New("prefix pool exhausted")

// DefaultRanges are searched in order for free subnets.
var DefaultRanges = []netip.Prefix{
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
}

type record struct {
	Prefix     string    `json:"prefix"`
	ReservedAt time.Time `json:"reserved_at"`
}

// Pool is the shared address-pool resource.
type Pool struct {
	mu       sync.Mutex
	store    state.Store
	logger   *logging.Logger
	ranges   []netip.Prefix
	bits     int
	reserved map[string]netip.Prefix
	excluded []netip.Prefix
}

// New loads the pool's reservations from store.
func New(store state.Store, logger *logging.Logger) (*Pool, error) {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Pool{
		store:    store,
		logger:   logger.WithComponent("prefixpool"),
		ranges:   DefaultRanges,
		bits:     DefaultBits,
		reserved: make(map[string]netip.Prefix),
	}

	if err := state.EnsureBucket(store, state.BucketPrefixPool); err != nil {
		return nil, fmt.Errorf("failed to open prefix pool: %w", err)
	}
	entries, err := store.List(state.BucketPrefixPool)
	if err != nil {
		return nil, fmt.Errorf("failed to load prefix pool: %w", err)
	}
	for owner := range entries {
		var rec record
		if err := store.GetJSON(state.BucketPrefixPool, owner, &rec); err != nil {
			p.logger.Warn("dropping unreadable reservation", "owner", owner, "error", err)
			continue
		}
		prefix, err := netip.ParsePrefix(rec.Prefix)
		if err != nil {
			p.logger.Warn("dropping invalid reservation", "owner", owner, "prefix", rec.Prefix)
			continue
		}
		p.reserved[owner] = prefix.Masked()
	}
	return p, nil
}

// Exclude marks prefixes as in use elsewhere (addresses already configured on
// the host, upstream networks). Reserve never returns a subnet overlapping
// an excluded prefix.
func (p *Pool) Exclude(prefixes ...netip.Prefix) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, prefix := range prefixes {
		if prefix.Addr().Is4() {
			p.excluded = append(p.excluded, prefix.Masked())
		}
	}
}

// Reserve returns owner's subnet, allocating the first free one if owner has
// none or its saved subnet now conflicts with an excluded prefix.
func (p *Pool) Reserve(owner string) (netip.Prefix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prefix, ok := p.reserved[owner]; ok {
		if !Conflicts([]netip.Prefix{prefix}, p.excluded) {
			return prefix, nil
		}
		p.logger.Info("saved prefix now conflicts, reallocating", "owner", owner, "prefix", prefix)
		delete(p.reserved, owner)
	}

	taken := append(p.others(owner), p.excluded...)
	for _, r := range p.ranges {
		if prefix, ok := firstFree(r, p.bits, taken); ok {
			rec := record{Prefix: prefix.String(), ReservedAt: time.Now()}
			if err := p.store.SetJSON(state.BucketPrefixPool, owner, rec); err != nil {
				return netip.Prefix{}, fmt.Errorf("failed to save reservation: %w", err)
			}
			p.reserved[owner] = prefix
			p.logger.Info("prefix reserved", "owner", owner, "prefix", prefix)
			return prefix, nil
		}
	}
	return netip.Prefix{}, ErrExhausted
}

// Release drops owner's reservation. Releasing an owner with no reservation
// is not an error.
func (p *Pool) Release(owner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.reserved[owner]; !ok {
		return nil
	}
	delete(p.reserved, owner)
	if err := p.store.Delete(state.BucketPrefixPool, owner); err != nil && !errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	return nil
}

// Lookup returns owner's current reservation.
func (p *Pool) Lookup(owner string) (netip.Prefix, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix, ok := p.reserved[owner]
	return prefix, ok
}

// Reservations returns a copy of all reservations.
func (p *Pool) Reservations() map[string]netip.Prefix {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]netip.Prefix, len(p.reserved))
	for k, v := range p.reserved {
		out[k] = v
	}
	return out
}

func (p *Pool) others(owner string) []netip.Prefix {
	owners := make([]string, 0, len(p.reserved))
	for o := range p.reserved {
		if o != owner {
			owners = append(owners, o)
		}
	}
	sort.Strings(owners)
	out := make([]netip.Prefix, 0, len(owners))
	for _, o := range owners {
		out = append(out, p.reserved[o])
	}
	return out
}

// firstFree walks r in steps of /bits and returns the first subnet that
// overlaps nothing in taken. The all-zero subnet of each range is skipped.
func firstFree(r netip.Prefix, bits int, taken []netip.Prefix) (netip.Prefix, bool) {
	if bits < r.Bits() || bits > 32 {
		return netip.Prefix{}, false
	}
	base := r.Masked().Addr().As4()
	start := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])
	step := uint32(1) << (32 - bits)
	count := uint32(1) << (bits - r.Bits())

	for i := uint32(1); i < count; i++ {
		n := start + i*step
		addr := netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
		candidate := netip.PrefixFrom(addr, bits)
		if !Conflicts([]netip.Prefix{candidate}, taken) {
			return candidate, true
		}
	}
	return netip.Prefix{}, false
}

// Conflicts reports whether any prefix in a overlaps any prefix in b.
func Conflicts(a, b []netip.Prefix) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Overlaps(y) {
				return true
			}
		}
	}
	return false
}
