// Package depgraph orders named nodes so that every node comes after the
// nodes it declares it must follow.
//
// Resolve uses Kahn's algorithm with a sorted ready set: whenever several
// nodes are free to go next, the lexicographically smallest name wins. The
// same input therefore always yields the same order.
package depgraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is wrapped by every *CycleError.
var ErrCycle = errors.New("dependency cycle")

// CycleError reports a dependency mapping that cannot be ordered.
type CycleError struct {
	// Cycle is one concrete loop, first node repeated at the end
	// (a -> b -> a).
	Cycle []string
	// Unresolved lists every node that could not be placed, sorted.
	Unresolved []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Resolve returns a total order over every node in deps. deps maps a node to
// the names it must follow. A name that appears only as a dependency is a node
// with no dependencies of its own and is included in the output.
func Resolve(deps map[string][]string) ([]string, error) {
	// after[n] holds the distinct nodes that must follow n.
	after := make(map[string][]string)
	pending := make(map[string]int)

	for node, reqs := range deps {
		if _, ok := pending[node]; !ok {
			pending[node] = 0
		}
		seen := make(map[string]struct{}, len(reqs))
		for _, req := range reqs {
			if _, dup := seen[req]; dup {
				continue
			}
			seen[req] = struct{}{}
			if _, ok := pending[req]; !ok {
				pending[req] = 0
			}
			after[req] = append(after[req], node)
			pending[node]++
		}
	}

	ready := make([]string, 0, len(pending))
	for node, n := range pending {
		if n == 0 {
			ready = append(ready, node)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(pending))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		for _, next := range after[node] {
			pending[next]--
			if pending[next] == 0 {
				i, _ := slices.BinarySearch(ready, next)
				ready = slices.Insert(ready, i, next)
			}
		}
	}

	if len(order) == len(pending) {
		return order, nil
	}

	var unresolved []string
	for node, n := range pending {
		if n > 0 {
			unresolved = append(unresolved, node)
		}
	}
	slices.Sort(unresolved)

	return nil, &CycleError{
		Cycle:      findCycle(deps, pending, unresolved[0]),
		Unresolved: unresolved,
	}
}

// findCycle walks from start through unresolved dependencies, always taking
// the smallest name, until a node repeats. Every unresolved node has at least
// one unresolved dependency, so the walk always closes.
func findCycle(deps map[string][]string, pending map[string]int, start string) []string {
	index := make(map[string]int)
	var path []string

	node := start
	for {
		if i, ok := index[node]; ok {
			return append(path[i:], node)
		}
		index[node] = len(path)
		path = append(path, node)

		var next string
		for _, req := range deps[node] {
			if pending[req] > 0 && (next == "" || req < next) {
				next = req
			}
		}
		node = next
	}
}
