package diff

// LineType tags a diff line as added, removed, or unchanged context.
type LineType string

const (
	// LineContext is an unchanged line carried for context.
	LineContext LineType = " "
	// LineAdded is a line present only on the right side.
	LineAdded LineType = "+"
	// LineRemoved is a line present only on the left side.
	LineRemoved LineType = "-"
)

// Line is a single line in a hunk.
type Line struct {
	Type    LineType
	Content string
}

// String returns the unified-diff rendering of the line.
func (l Line) String() string {
	return string(l.Type) + l.Content
}

// Hunk is a contiguous block of changes. OldStart/OldCount address the left
// side (1-based), NewStart/NewCount the right side.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Lines computes the line-level hunks between left and right using a
// longest-common-subsequence walk. Contiguous changed lines are grouped into
// hunks; removed lines precede added lines within a hunk.
func Lines(left, right []string) []Hunk {
	lcs := longestCommonSubsequence(left, right)

	var hunks []Hunk
	var current *Hunk

	li, ri, ci := 0, 0, 0
	for li < len(left) || ri < len(right) {
		leftCommon := li < len(left) && ci < len(lcs) && left[li] == lcs[ci]
		rightCommon := ri < len(right) && ci < len(lcs) && right[ri] == lcs[ci]

		if leftCommon && rightCommon {
			if current != nil {
				hunks = append(hunks, *current)
				current = nil
			}
			li++
			ri++
			ci++
			continue
		}

		if current == nil {
			current = &Hunk{OldStart: li + 1, NewStart: ri + 1}
		}

		for li < len(left) && (ci >= len(lcs) || left[li] != lcs[ci]) {
			current.Lines = append(current.Lines, Line{Type: LineRemoved, Content: left[li]})
			current.OldCount++
			li++
		}
		for ri < len(right) && (ci >= len(lcs) || right[ri] != lcs[ci]) {
			current.Lines = append(current.Lines, Line{Type: LineAdded, Content: right[ri]})
			current.NewCount++
			ri++
		}
	}

	if current != nil {
		hunks = append(hunks, *current)
	}
	return hunks
}

// ApplyHunks replays the hunks of Lines(left, right) onto left, reproducing
// right exactly. Hunks must be in order and non-overlapping, which Lines
// guarantees.
func ApplyHunks(left []string, hunks []Hunk) []string {
	out := make([]string, 0, len(left))
	cursor := 0
	for _, h := range hunks {
		for cursor < h.OldStart-1 && cursor < len(left) {
			out = append(out, left[cursor])
			cursor++
		}
		for _, line := range h.Lines {
			switch line.Type {
			case LineRemoved:
				cursor++
			case LineAdded:
				out = append(out, line.Content)
			case LineContext:
				out = append(out, line.Content)
				cursor++
			}
		}
	}
	out = append(out, left[cursor:]...)
	return out
}

// longestCommonSubsequence finds the LCS of two string slices.
func longestCommonSubsequence(a, b []string) []string {
	lenA, lenB := len(a), len(b)
	if lenA == 0 || lenB == 0 {
		return nil
	}

	dp := make([][]int, lenA+1)
	for i := range dp {
		dp[i] = make([]int, lenB+1)
	}

	for i := 1; i <= lenA; i++ {
		for j := 1; j <= lenB; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}

	lcs := make([]string, dp[lenA][lenB])
	i, j, idx := lenA, lenB, dp[lenA][lenB]-1
	for i > 0 && j > 0 {
		switch {
		case a[i-1] == b[j-1]:
			lcs[idx] = a[i-1]
			i--
			j--
			idx--
		case dp[i-1][j] > dp[i][j-1]:
			i--
		default:
			j--
		}
	}
	return lcs
}
