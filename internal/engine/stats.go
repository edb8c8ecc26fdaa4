package engine

import "time"

// totals is the aggregate state for one run. It is owned exclusively by
// the aggregator goroutine; workers only send completion events, so no
// shared lock is needed and no updates can be lost.
type totals struct {
	bytes    int64
	taskTime time.Duration
	copied   int
	skipped  int
	failures int
}

// aggregate consumes outcomes until the channel closes and delivers the
// final totals exactly once.
func aggregate(outcomes <-chan *Outcome, done chan<- totals) {
	var t totals
	for out := range outcomes {
		t.bytes += out.Bytes
		t.taskTime += out.Elapsed
		switch out.Status {
		case StatusSuccess:
			t.copied++
		case StatusSkip:
			t.skipped++
		case StatusFail:
			t.failures++
		}
	}
	done <- t
}
