// SPDX-License-Identifier: EPL-2.0

package mixer

import "slices"

// Linearize computes the C3 linearization of root: root followed by the
// merge of the linearizations of deps(root). deps must be deterministic.
// Results are memoized per node, so shared subgraphs are linearized once.
func Linearize[K comparable](root K, deps func(K) []K) ([]K, error) {
	memo := make(map[K][]K)
	visiting := make(map[K]bool)

	var lin func(K) ([]K, error)
	lin = func(n K) ([]K, error) {
		if l, ok := memo[n]; ok {
			return l, nil
		}
		if visiting[n] {
			return nil, ErrCycle
		}
		visiting[n] = true
		defer delete(visiting, n)

		ds := deps(n)
		seqs := make([][]K, 0, len(ds))
		for _, d := range ds {
			l, err := lin(d)
			if err != nil {
				return nil, err
			}
			seqs = append(seqs, l)
		}

		merged, err := c3Merge(seqs)
		if err != nil {
			return nil, err
		}
		out := append([]K{n}, merged...)
		memo[n] = out
		return out, nil
	}

	return lin(root)
}

// c3Merge repeatedly takes the first head that appears in no list's tail.
// The input slices are not modified.
func c3Merge[K comparable](seqs [][]K) ([]K, error) {
	seqs = slices.Clone(seqs)
	var out []K
	for {
		seqs = slices.DeleteFunc(seqs, func(s []K) bool { return len(s) == 0 })
		if len(seqs) == 0 {
			return out, nil
		}

		var (
			head  K
			found bool
		)
		for _, s := range seqs {
			if !inAnyTail(seqs, s[0]) {
				head, found = s[0], true
				break
			}
		}
		if !found {
			return nil, ErrInconsistentOrder
		}

		out = append(out, head)
		for i, s := range seqs {
			if s[0] == head {
				seqs[i] = s[1:]
			}
		}
	}
}

func inAnyTail[K comparable](seqs [][]K, v K) bool {
	for _, s := range seqs {
		if slices.Contains(s[1:], v) {
			return true
		}
	}
	return false
}

// TopologicalOrder orders nodes so that every node follows all of deps(node).
// Ties are broken by position in nodes. Dependencies outside nodes are ignored.
func TopologicalOrder[K comparable](nodes []K, deps func(K) []K) ([]K, error) {
	known := make(map[K]bool, len(nodes))
	for _, n := range nodes {
		known[n] = true
	}
	done := make(map[K]bool, len(nodes))
	out := make([]K, 0, len(nodes))

	for len(out) < len(nodes) {
		progressed := false
		for _, n := range nodes {
			if done[n] {
				continue
			}
			ready := true
			for _, d := range deps(n) {
				if known[d] && !done[d] {
					ready = false
					break
				}
			}
			if ready {
				done[n] = true
				out = append(out, n)
				progressed = true
				break
			}
		}
		if !progressed {
			return nil, ErrCycle
		}
	}
	return out, nil
}
