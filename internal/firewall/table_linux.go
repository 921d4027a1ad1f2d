//go:build linux

package firewall

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"github.com/vishvananda/netns"

	"grimm.is/wrtd/internal/logging"
)

type chainSpec struct {
	name     string
	typ      nftables.ChainType
	hook     *nftables.ChainHook
	priority *nftables.ChainPriority
}

// chainSpecs is the fixed schema, in creation order.
var chainSpecs = []chainSpec{
	{ChainFilter, nftables.ChainTypeFilter, nftables.ChainHookPrerouting, nftables.ChainPriorityFilter},
	{ChainNATPre, nftables.ChainTypeNAT, nftables.ChainHookPrerouting, nftables.ChainPriorityRef(0)},
	// srcnat: runs once conntrack and routing have settled the packet.
	{ChainNATPost, nftables.ChainTypeNAT, nftables.ChainHookPostrouting, nftables.ChainPriorityNATSource},
}

// TableManager provisions and removes the daemon's table.
type TableManager struct {
	mu     sync.Mutex
	conn   NFTablesConn
	logger *logging.Logger
	family nftables.TableFamily
	ns     netns.NsHandle
}

// NewTableManager returns a manager driving conn.
func NewTableManager(conn NFTablesConn, logger *logging.Logger) *TableManager {
	if logger == nil {
		logger = logging.Default()
	}
	return &TableManager{
		conn:   conn,
		logger: logger.WithComponent("firewall"),
		family: nftables.TableFamilyIPv4,
		ns:     netns.None(),
	}
}

// Open connects to nftables, inside the named network namespace when ns is
// not empty.
func Open(ns string, logger *logging.Logger) (*TableManager, error) {
	var opts []nftables.ConnOption
	handle := netns.None()
	if ns != "" {
		var err error
		handle, err = netns.GetFromName(ns)
		if err != nil {
			return nil, fmt.Errorf("failed to open netns %s: %w", ns, err)
		}
		// Every netlink request reopens a socket through this fd, so it
		// stays open until Close.
		opts = append(opts, nftables.WithNetNSFd(int(handle)))
	}

	conn, err := nftables.New(opts...)
	if err != nil {
		if handle.IsOpen() {
			handle.Close()
		}
		return nil, fmt.Errorf("failed to open nftables connection: %w", err)
	}
	m := NewTableManager(NewRealNFTablesConn(conn), logger)
	m.ns = handle
	return m, nil
}

// Close releases the network namespace handle, if any.
func (m *TableManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ns.IsOpen() {
		return nil
	}
	err := m.ns.Close()
	m.ns = netns.None()
	return err
}

func (m *TableManager) lookupTable() (*nftables.Table, error) {
	tables, err := m.conn.ListTables()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	for _, t := range tables {
		if t.Name == TableName && t.Family == m.family {
			return t, nil
		}
	}
	return nil, nil
}

func (m *TableManager) tableChains() (map[string]*nftables.Chain, error) {
	chains, err := m.conn.ListChainsOfTableFamily(m.family)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	out := make(map[string]*nftables.Chain)
	for _, c := range chains {
		if c.Table != nil && c.Table.Name == TableName {
			out[c.Name] = c
		}
	}
	return out, nil
}

// Provision creates the table and any missing chain, then commits once.
func (m *TableManager) Provision() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.lookupTable()
	if err != nil {
		return err
	}

	var added []string
	if table == nil {
		table = m.conn.AddTable(&nftables.Table{Name: TableName, Family: m.family})
		added = append(added, "table "+TableName)
	}

	existing, err := m.tableChains()
	if err != nil {
		return err
	}
	for _, spec := range chainSpecs {
		if _, ok := existing[spec.name]; ok {
			continue
		}
		m.conn.AddChain(&nftables.Chain{
			Name:     spec.name,
			Table:    table,
			Type:     spec.typ,
			Hooknum:  spec.hook,
			Priority: spec.priority,
		})
		added = append(added, "chain "+spec.name)
	}

	if len(added) == 0 {
		m.logger.Debug("firewall table already provisioned", "table", TableName)
		return nil
	}
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to provision table %s: %w", TableName, err)
	}
	m.logger.Info("firewall table provisioned", "table", TableName, "added", strings.Join(added, ","))
	return nil
}

// ForceDelete removes the table if it exists on the live system. It does not
// depend on whether this process provisioned it.
func (m *TableManager) ForceDelete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.lookupTable()
	if err != nil {
		return err
	}
	if table == nil {
		m.logger.Debug("firewall table not present", "table", TableName)
		return nil
	}

	m.conn.DelTable(table)
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to delete table %s: %w", TableName, err)
	}
	m.logger.Info("firewall table removed", "table", TableName)
	return nil
}

func (m *TableManager) getChain(name string) (*nftables.Chain, error) {
	chains, err := m.tableChains()
	if err != nil {
		return nil, err
	}
	c, ok := chains[name]
	if !ok {
		return nil, fmt.Errorf("chain %s not found in table %s", name, TableName)
	}
	return c, nil
}

// ifname pads an interface name to IFNAMSIZ for meta oifname comparisons.
func ifname(name string) []byte {
	b := make([]byte, 16)
	copy(b, name)
	return b
}

// AddMasquerade appends "oifname <oif> masquerade" to chain.
func (m *TableManager) AddMasquerade(chain, oif, comment string) error {
	if oif == "" || len(oif) > 15 {
		return fmt.Errorf("invalid output interface %q", oif)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getChain(chain)
	if err != nil {
		return err
	}

	m.conn.AddRule(&nftables.Rule{
		Table: c.Table,
		Chain: c,
		Exprs: []expr.Any{
			&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifname(oif)},
			&expr.Masq{},
		},
		UserData: []byte(comment),
	})
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to add masquerade rule: %w", err)
	}
	m.logger.Debug("masquerade rule added", "chain", chain, "oif", oif, "comment", comment)
	return nil
}

// DeleteRulesByComment removes rules whose comment starts with prefix.
func (m *TableManager) DeleteRulesByComment(chain, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getChain(chain)
	if err != nil {
		return err
	}

	rules, err := m.conn.GetRules(c.Table, c)
	if err != nil {
		return fmt.Errorf("failed to get rules: %w", err)
	}

	deleted := 0
	for _, rule := range rules {
		if strings.HasPrefix(string(rule.UserData), prefix) {
			if err := m.conn.DelRule(rule); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}
			deleted++
		}
	}
	if deleted == 0 {
		return nil
	}
	if err := m.conn.Flush(); err != nil {
		return fmt.Errorf("failed to delete rules: %w", err)
	}
	m.logger.Debug("rules deleted", "chain", chain, "prefix", prefix, "count", deleted)
	return nil
}
