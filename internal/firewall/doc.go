// Package firewall owns the daemon's nftables table.
//
// The table (ip wrtd) carries three base chains:
//
//	fw       filter  prerouting   priority 0
//	natpre   nat     prerouting   priority 0
//	natpost  nat     postrouting  priority 100 (srcnat)
//
// Table and chain existence is always read from the kernel, never cached, so
// a daemon restarted after a crash reconciles against whatever the previous
// run left behind. Managers add and remove their own rules through
// RuleEditor, tagging each rule with a comment they can later delete by.
package firewall
