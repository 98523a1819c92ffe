// Package fuzzy flags words that are within a small edit distance of a fixed
// blocklist, so that typos of complaint terms are still caught.
package fuzzy

// Distance returns the Levenshtein distance between a and b: the minimum number
// of single code point insertions, deletions and substitutions, each of cost 1,
// turning a into b. A transposition costs 2.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	rows, cols := len(ra)+1, len(rb)+1

	dist := make([][]int, rows)
	for i := range dist {
		dist[i] = make([]int, cols)
		dist[i][0] = i
	}
	for j := 0; j < cols; j++ {
		dist[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			dist[i][j] = min(
				dist[i-1][j]+1,      // deletion
				dist[i][j-1]+1,      // insertion
				dist[i-1][j-1]+cost, // substitution
			)
		}
	}

	return dist[rows-1][cols-1]
}
