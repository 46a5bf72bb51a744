// Package hungarian solves the rectangular assignment problem with the
// Kuhn-Munkres algorithm (Jonker-Volgenant shortest augmenting path variant,
// O(n^2*m) with n <= m after orientation).
package hungarian

import "math"

// Assign minimizes the total cost of min(n, m) one-to-one pairings over the
// rectangular cost matrix. It returns rowToCol where rowToCol[i] is the column
// assigned to row i, or -1 when row i is left unassigned (possible only when
// there are more rows than columns). Excess rows or columns stay unassigned;
// no pairing against a dummy entry is ever reported.
func Assign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = -1
		}
		return out
	}
	if n <= m {
		return solve(cost)
	}
	// Orient so rows <= cols, then invert the assignment.
	t := make([][]float64, m)
	for j := 0; j < m; j++ {
		t[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			t[j][i] = cost[i][j]
		}
	}
	colToRow := solve(t)
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	for j, i := range colToRow {
		out[i] = j
	}
	return out
}

// solve runs the potentials-based shortest-augmenting-path algorithm.
// Requires len(cost) <= len(cost[0]); every row ends up assigned.
func solve(cost [][]float64) []int {
	n := len(cost)
	m := len(cost[0])
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)   // p[j]: row currently assigned to column j (1-based, 0 = free)
	way := make([]int, m+1) // way[j]: previous column on the augmenting path

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			j1 := 0
			delta := math.Inf(1)
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		// Unwind the augmenting path.
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	res := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] > 0 {
			res[p[j]-1] = j - 1
		}
	}
	return res
}
