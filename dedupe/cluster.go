package dedupe

// cluster groups items whose pairwise similarity meets the threshold,
// using single-link union-find. Transitivity is intended: if A~B and
// B~C, all three share a cluster regardless of A~C similarity.
func cluster(hashes []Hash, threshold float64) [][]int {
	parent := make([]int, len(hashes))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < len(hashes); i++ {
		for j := i + 1; j < len(hashes); j++ {
			if Similarity(hashes[i], hashes[j]) >= threshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	order := make([]int, 0, len(hashes))
	for i := range hashes {
		root := find(i)
		if _, seen := groups[root]; !seen {
			order = append(order, root)
		}
		groups[root] = append(groups[root], i)
	}

	out := make([][]int, 0, len(order))
	for _, root := range order {
		out = append(out, groups[root])
	}
	return out
}
