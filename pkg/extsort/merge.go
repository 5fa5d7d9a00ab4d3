package extsort

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
)

// EventStream yields change events in total order, one at a time, so the
// writer can stream output without materializing the merged result.
type EventStream interface {
	// Next returns the next event, or io.EOF after the last one.
	Next() (gource.Event, error)

	// Close releases stream resources. Safe to call after exhaustion.
	Close() error
}

// SortResult is the accumulator's final state: either the single buffered
// run of a dataset that fit in memory, or the chunk files of an external
// sort.
type SortResult struct {
	events []gource.Event
	chunks []string
}

// InMemory reports whether the whole dataset fit without spilling.
func (r *SortResult) InMemory() bool {
	return len(r.chunks) == 0
}

// Stream produces the totally ordered event stream. The in-memory path
// sorts the single buffered run; the external path opens every chunk as a
// lazy cursor and merges through a priority heap. Both paths order by the
// same key, so identical input yields byte-identical output either way.
func (r *SortResult) Stream() (EventStream, error) {
	if r.InMemory() {
		sortEvents(r.events)

		return &memoryStream{events: r.events}, nil
	}

	cursors := make(cursorHeap, 0, len(r.chunks))

	for _, path := range r.chunks {
		cursor, err := openCursor(path)
		if err != nil {
			for _, open := range cursors {
				open.discard()
			}

			return nil, err
		}

		if cursor == nil {
			continue
		}

		cursors = append(cursors, cursor)
	}

	stream := &mergeStream{cursors: cursors}
	heap.Init(&stream.cursors)

	return stream, nil
}

// memoryStream walks an already sorted slice.
type memoryStream struct {
	events []gource.Event
	pos    int
}

func (m *memoryStream) Next() (gource.Event, error) {
	if m.pos >= len(m.events) {
		return gource.Event{}, io.EOF
	}

	ev := m.events[m.pos]
	m.pos++

	return ev, nil
}

func (m *memoryStream) Close() error {
	m.events = nil

	return nil
}

// chunkCursor is the lazy head of one chunk file: the current event plus
// the decompressing reader behind it. Only one record per chunk is ever
// resident, which keeps merge memory at O(chunk count).
type chunkCursor struct {
	path string
	file *os.File
	lz   *lz4.Reader
	cur  gource.Event
	buf  []byte
}

// openCursor opens a chunk and loads its first record. A chunk with no
// records is discarded and reported as nil.
func openCursor(path string) (*chunkCursor, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("open chunk: %w", openErr)
	}

	cursor := &chunkCursor{path: path, file: file, lz: lz4.NewReader(file)}

	ok, advanceErr := cursor.advance()
	if advanceErr != nil {
		cursor.discard()

		return nil, advanceErr
	}

	if !ok {
		cursor.discard()

		return nil, nil
	}

	return cursor, nil
}

// advance loads the next record into cur. False means the chunk is
// exhausted.
func (c *chunkCursor) advance() (bool, error) {
	ev, buf, err := readRecord(c.lz, c.buf)
	c.buf = buf

	if errors.Is(err, io.EOF) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("chunk %s: %w", filepath.Base(c.path), err)
	}

	c.cur = ev

	return true, nil
}

// discard closes and deletes the chunk file. Chunks are write-once
// read-once; deletion is best effort and leftovers are swept by
// Session.Close.
func (c *chunkCursor) discard() {
	_ = c.file.Close()
	_ = os.Remove(c.path)
}

// cursorHeap orders cursors by their current event.
type cursorHeap []*chunkCursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool { return h[i].cur.Compare(h[j].cur) < 0 }

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) {
	cursor, ok := x.(*chunkCursor)
	if !ok {
		return
	}

	*h = append(*h, cursor)
}

func (h *cursorHeap) Pop() any {
	old := *h
	last := len(old) - 1
	cursor := old[last]
	old[last] = nil
	*h = old[:last]

	return cursor
}

// mergeStream extracts the minimum head across all cursors, refilling
// from the chunk it came from. Within one chunk records keep their
// spilled order; the merge only interleaves across chunks.
type mergeStream struct {
	cursors cursorHeap
}

func (m *mergeStream) Next() (gource.Event, error) {
	if m.cursors.Len() == 0 {
		return gource.Event{}, io.EOF
	}

	top := m.cursors[0]
	ev := top.cur

	ok, err := top.advance()
	if err != nil {
		return gource.Event{}, err
	}

	if ok {
		heap.Fix(&m.cursors, 0)
	} else {
		heap.Pop(&m.cursors)
		top.discard()
	}

	return ev, nil
}

func (m *mergeStream) Close() error {
	for _, cursor := range m.cursors {
		cursor.discard()
	}

	m.cursors = nil

	return nil
}
