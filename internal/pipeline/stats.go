package pipeline

import "time"

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Frames           uint64        `json:"frames"`
	Completed        uint64        `json:"completed"`
	EncodeErrors     uint64        `json:"encode_errors"`
	DetectorFailures uint64        `json:"detector_failures"`
	Aborted          uint64        `json:"aborted"`
	LastSeq          uint64        `json:"last_seq"`
	LastDuration     time.Duration `json:"last_duration_ns"`
	EdgeDetection    bool          `json:"edge_detection"`
}

// Stats returns the current counters. Safe for concurrent use.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:           p.frames.Load(),
		Completed:        p.completed.Load(),
		EncodeErrors:     p.encodeErrors.Load(),
		DetectorFailures: p.detectErrors.Load(),
		Aborted:          p.aborted.Load(),
		LastSeq:          p.lastSeq.Load(),
		LastDuration:     time.Duration(p.lastDuration.Load()),
		EdgeDetection:    p.opts.Gate.Enabled(),
	}
}
