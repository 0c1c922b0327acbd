package library

import "sort"

// intervalTree provides O(log n + k) point-overlap queries over feature
// intervals using a sorted-slice approach. Intervals are loaded once and
// never modified after build.
type intervalTree struct {
	intervals []treeInterval
	maxEnd    []int64 // maxEnd[i] = max(End) over intervals[:i+1]
}

type treeInterval struct {
	start int64
	end   int64
	index int // index into the caller's feature slice
}

// buildIntervalTree creates an interval tree from (start, end, index)
// triples grouped by chromosome upstream.
func buildIntervalTree(intervals []treeInterval) *intervalTree {
	if len(intervals) == 0 {
		return &intervalTree{}
	}

	sorted := make([]treeInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].start < sorted[j].start
	})

	// Build prefix-max array: maxEnd[i] = max(end) over sorted[:i+1],
	// so the downward scan in findOverlaps can stop as soon as no
	// earlier-starting interval reaches pos.
	maxEnd := make([]int64, len(sorted))
	maxEnd[0] = sorted[0].end
	for i := 1; i < len(sorted); i++ {
		maxEnd[i] = sorted[i].end
		if maxEnd[i-1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i-1]
		}
	}

	return &intervalTree{intervals: sorted, maxEnd: maxEnd}
}

// findOverlaps returns the indices of all intervals containing pos.
func (t *intervalTree) findOverlaps(pos int64) []int {
	if len(t.intervals) == 0 {
		return nil
	}

	var result []int

	// Binary search: find rightmost interval with start <= pos.
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start > pos
	})
	// hi is the first index with start > pos; candidates are [0, hi).

	for i := hi - 1; i >= 0; i-- {
		// Prune: if no interval in sorted[:i+1] ends at or after pos,
		// none of the remaining candidates can contain it.
		if t.maxEnd[i] < pos {
			break
		}
		if t.intervals[i].end >= pos {
			result = append(result, t.intervals[i].index)
		}
	}

	return result
}
