package firewall

import "errors"

// Table and chain names.
const (
	TableName = "wrtd"

	ChainFilter  = "fw"
	ChainNATPre  = "natpre"
	ChainNATPost = "natpost"
)

// ErrNotSupported is returned on platforms without nftables.
var ErrNotSupported = errors.New("nftables is not supported on this platform")

// RuleEditor adds and removes rules in the daemon's chains.
type RuleEditor interface {
	// AddMasquerade masquerades traffic leaving through oif.
	AddMasquerade(chain, oif, comment string) error
	// DeleteRulesByComment removes every rule in chain whose comment
	// starts with prefix.
	DeleteRulesByComment(chain, prefix string) error
}

// Table is the daemon's firewall table.
type Table interface {
	RuleEditor
	// Provision creates whatever part of the table and its chains is
	// missing. Calling it on a fully provisioned table is a no-op.
	Provision() error
	// ForceDelete removes the table if the kernel has it.
	ForceDelete() error
	// Close releases the connection's resources.
	Close() error
}
