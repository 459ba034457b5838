package dd

import (
	"fmt"
	"time"
)

// Stats summarizes one construction.
type Stats struct {
	Layers           int
	NodesCreated     int
	DuplicatesMerged int
	RelaxedMerges    int
	LongArcs         int
	PrunedPrimal     int
	PrunedDual       int
	MaxWidth         int
	Elapsed          time.Duration
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("layers=%d nodes=%d dups=%d merges=%d longarcs=%d pruned=%d/%d width=%d time=%v",
		s.Layers, s.NodesCreated, s.DuplicatesMerged, s.RelaxedMerges, s.LongArcs,
		s.PrunedPrimal, s.PrunedDual, s.MaxWidth, s.Elapsed)
}
