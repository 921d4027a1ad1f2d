//go:build linux

package firewall

import (
	"sync"

	"github.com/google/nftables"
	"github.com/stretchr/testify/mock"
)

// MockNFTablesConn is a testify mock of NFTablesConn that also keeps
// in-memory tables, chains and rules, so list calls reflect earlier adds.
type MockNFTablesConn struct {
	mock.Mock
	mu sync.Mutex

	tables     map[string]*nftables.Table
	chains     map[string]*nftables.Chain
	rules      map[string][]*nftables.Rule
	nextHandle uint64
}

// NewMockNFTablesConn creates a new mock nftables connection.
func NewMockNFTablesConn() *MockNFTablesConn {
	return &MockNFTablesConn{
		tables: make(map[string]*nftables.Table),
		chains: make(map[string]*nftables.Chain),
		rules:  make(map[string][]*nftables.Rule),
	}
}

// AllowAll registers permissive expectations for every method, answering
// from in-memory state. Expectations registered earlier take precedence.
func (m *MockNFTablesConn) AllowAll() *MockNFTablesConn {
	m.On("AddTable", mock.Anything).Maybe()
	m.On("DelTable", mock.Anything).Maybe()
	m.On("ListTables").Return(nil, nil).Maybe()
	m.On("AddChain", mock.Anything).Maybe()
	m.On("ListChainsOfTableFamily", mock.Anything).Return(nil, nil).Maybe()
	m.On("AddRule", mock.Anything).Maybe()
	m.On("DelRule", mock.Anything).Return(nil).Maybe()
	m.On("GetRules", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	m.On("Flush").Return(nil).Maybe()
	return m
}

func tableKey(t *nftables.Table) string {
	return t.Name
}

func chainKey(c *nftables.Chain) string {
	return c.Table.Name + "/" + c.Name
}

func (m *MockNFTablesConn) AddTable(t *nftables.Table) *nftables.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(t)
	m.tables[tableKey(t)] = t
	return t
}

func (m *MockNFTablesConn) DelTable(t *nftables.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(t)
	delete(m.tables, tableKey(t))
	for k, c := range m.chains {
		if c.Table.Name == t.Name {
			delete(m.chains, k)
			delete(m.rules, k)
		}
	}
}

func (m *MockNFTablesConn) ListTables() ([]*nftables.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Table), args.Error(1)
	}
	tables := make([]*nftables.Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	return tables, args.Error(1)
}

func (m *MockNFTablesConn) AddChain(c *nftables.Chain) *nftables.Chain {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(c)
	m.chains[chainKey(c)] = c
	return c
}

func (m *MockNFTablesConn) ListChainsOfTableFamily(family nftables.TableFamily) ([]*nftables.Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(family)
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Chain), args.Error(1)
	}
	chains := make([]*nftables.Chain, 0)
	for _, c := range m.chains {
		if c.Table.Family == family {
			chains = append(chains, c)
		}
	}
	return chains, args.Error(1)
}

func (m *MockNFTablesConn) AddRule(r *nftables.Rule) *nftables.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(r)
	m.nextHandle++
	r.Handle = m.nextHandle
	key := chainKey(r.Chain)
	m.rules[key] = append(m.rules[key], r)
	return r
}

func (m *MockNFTablesConn) DelRule(r *nftables.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(r)
	if err := args.Error(0); err != nil {
		return err
	}
	key := chainKey(r.Chain)
	kept := m.rules[key][:0]
	for _, existing := range m.rules[key] {
		if existing.Handle != r.Handle {
			kept = append(kept, existing)
		}
	}
	m.rules[key] = kept
	return nil
}

func (m *MockNFTablesConn) GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(t, c)
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Rule), args.Error(1)
	}
	key := t.Name + "/" + c.Name
	return append([]*nftables.Rule(nil), m.rules[key]...), args.Error(1)
}

func (m *MockNFTablesConn) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called()
	return args.Error(0)
}

// Chains returns the names of the chains currently held for table.
func (m *MockNFTablesConn) Chains(table string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, c := range m.chains {
		if c.Table.Name == table {
			names = append(names, c.Name)
		}
	}
	return names
}

// Rules returns the rules currently held for table/chain.
func (m *MockNFTablesConn) Rules(table, chain string) []*nftables.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*nftables.Rule(nil), m.rules[table+"/"+chain]...)
}
