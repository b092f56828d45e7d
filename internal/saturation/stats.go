package saturation

import "time"

// Stats summarizes one run. Per-worker counters are merged at the end of
// the run.
type Stats struct {
	RunID           string
	Workers         int
	Duration        time.Duration
	Conclusions     int64
	Duplicates      int64
	ContextsDrained int64
	ByKind          map[Kind]int64
}

type workerStats struct {
	byKind     [numKinds]int64
	duplicates int64
	drained    int64
}

func (s *Stats) merge(w *workerStats) {
	if s.ByKind == nil {
		s.ByKind = make(map[Kind]int64)
	}
	for k, n := range w.byKind {
		if n == 0 {
			continue
		}
		s.ByKind[Kind(k)] += n
		s.Conclusions += n
	}
	s.Duplicates += w.duplicates
	s.ContextsDrained += w.drained
}

// Progress is reported periodically while a run is in flight.
type Progress struct {
	RunID     string
	Processed int64 // conclusions processed so far
	Pending   int   // contexts queued or draining
	Elapsed   time.Duration
}
