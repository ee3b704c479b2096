package frame

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// DirtyRegion is a half-open range of buffer rows [Start, End) that changed
// since the previous finished frame
type DirtyRegion struct {
	Start int
	End   int
}

// Len is the number of rows in the region
func (r DirtyRegion) Len() int {
	return r.End - r.Start
}

// DirtyRegions is an ordered, non-overlapping set of row ranges. An empty set
// means nothing visible changed.
type DirtyRegions []DirtyRegion

// Empty reports whether no rows changed
func (d DirtyRegions) Empty() bool {
	return len(d) == 0
}

// Rows is the total number of changed rows
func (d DirtyRegions) Rows() int {
	n := 0
	for _, r := range d {
		n += r.Len()
	}
	return n
}

// Clamp limits every region to the rows of a buffer of the given height,
// drops empty regions, sorts and merges touching ones. The result is never
// nil.
func (d DirtyRegions) Clamp(height int) DirtyRegions {
	out := make(DirtyRegions, 0, len(d))
	for _, r := range d {
		r.Start = clamp(r.Start, 0, height)
		r.End = clamp(r.End, 0, height)
		if r.Len() > 0 {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})

	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && r.Start <= merged[n-1].End {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// DecodeDirtyBlocks converts the core's run-length row list into regions.
// The list alternates between a count of unchanged rows and a count of
// changed rows, starting with unchanged, and ends once the counts cover the
// buffer height. Counts that run past height are clamped.
func DecodeDirtyBlocks(blocks []uint16, height int) DirtyRegions {
	regions := DirtyRegions{}
	row := 0
	for i, count := range blocks {
		if row >= height {
			break
		}
		next := clamp(row+int(count), row, height)
		if i%2 == 1 && next > row {
			regions = append(regions, DirtyRegion{Start: row, End: next})
		}
		row = next
	}
	return regions.Clamp(height)
}

// EncodeDirtyBlocks is the inverse of DecodeDirtyBlocks for a clamped set
func EncodeDirtyBlocks(d DirtyRegions, height int) []uint16 {
	var blocks []uint16
	row := 0
	for _, r := range d.Clamp(height) {
		blocks = append(blocks, uint16(r.Start-row), uint16(r.Len()))
		row = r.End
	}
	if row < height {
		blocks = append(blocks, uint16(height-row))
	}
	return blocks
}

func clamp[I constraints.Integer](v, lo, hi I) I {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// align rounds a up to a multiple of b. b must be a power of two.
func align[I constraints.Integer](a, b I) I {
	return (a + b - 1) &^ (b - 1)
}
