// Package extsort implements the memory-bounded sort at the core of the
// pipeline: a shared accumulator that spills sorted chunks to disk once a
// size hint is reached, and a k-way merge that interleaves the chunks
// back into one totally ordered stream.
package extsort

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
)

// Accumulator buffers normalized events from all repository workers and
// decides when to spill. It is the single point of mutual exclusion in
// the pipeline; the critical section is append plus threshold check, with
// an occasional chunk write when the hint is crossed.
type Accumulator struct {
	mu           sync.Mutex
	session      *Session
	limit        int64
	events       []gource.Event
	size         int64
	spills       int
	spilledBytes int64
}

// NewAccumulator creates an accumulator spilling through session once the
// estimated serialized size of the buffer reaches limitBytes. A nil
// session disables spilling entirely; everything stays in memory.
func NewAccumulator(session *Session, limitBytes int64) *Accumulator {
	return &Accumulator{session: session, limit: limitBytes}
}

// Push appends one event to the active chunk. Crossing the size hint
// sorts the buffer and spills it as a new chunk; a spill failure is fatal
// to the run and surfaces here. Safe for concurrent use.
func (a *Accumulator) Push(ev gource.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.events = append(a.events, ev)
	a.size += int64(recordSize(ev))

	if a.session == nil || a.size < a.limit {
		return nil
	}

	return a.spillLocked()
}

// Finish flushes any remaining partial chunk and hands the session's
// chunk list to the merge. When no spill ever happened the buffered
// events are returned instead, so the caller can take the in-memory path.
// The accumulator must not be used afterwards.
func (a *Accumulator) Finish() (*SortResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.spills == 0 {
		events := a.events
		a.events = nil

		return &SortResult{events: events}, nil
	}

	if len(a.events) > 0 {
		spillErr := a.spillLocked()
		if spillErr != nil {
			return nil, spillErr
		}
	}

	return &SortResult{chunks: a.session.Chunks()}, nil
}

// Spills returns how many chunks have been written so far.
func (a *Accumulator) Spills() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.spills
}

// SpilledBytes returns the total estimated serialized size of all spilled
// chunks, before compression.
func (a *Accumulator) SpilledBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.spilledBytes
}

func (a *Accumulator) spillLocked() error {
	sortEvents(a.events)

	writeErr := a.session.writeChunk(a.events)
	if writeErr != nil {
		return fmt.Errorf("spill chunk: %w", writeErr)
	}

	a.spills++
	a.spilledBytes += a.size
	a.events = a.events[:0]
	a.size = 0

	return nil
}

// sortEvents orders a run by the total order key. The key covers every
// event field, so the unstable sort is still deterministic.
func sortEvents(events []gource.Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Compare(events[j]) < 0
	})
}
