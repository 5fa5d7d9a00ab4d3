package extsort

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
)

// testEvent builds a small event with a fixed author, which keeps record
// sizes predictable for threshold arithmetic.
func testEvent(ts int64, repo, path string) gource.Event {
	return gource.Event{Timestamp: ts, Author: "ann", Repo: repo, Path: path, Action: gource.ActionModified}
}

// collectStream drains a SortResult into a slice and closes the stream.
func collectStream(t *testing.T, result *SortResult) []gource.Event {
	t.Helper()

	stream, err := result.Stream()
	require.NoError(t, err)

	defer func() { require.NoError(t, stream.Close()) }()

	var events []gource.Event

	for {
		ev, nextErr := stream.Next()
		if nextErr == io.EOF {
			return events
		}

		require.NoError(t, nextErr)

		events = append(events, ev)
	}
}

func TestSortResult_StreamMergesChunks(t *testing.T) {
	t.Parallel()

	session, err := NewSession(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = session.Close() })

	ev := testEvent(0, "r", "f.txt")
	acc := NewAccumulator(session, int64(recordSize(ev))*4)

	const total = 23

	for i := range total {
		// Stride the timestamps so neighbouring values land in
		// different chunks and the merge has to interleave.
		require.NoError(t, acc.Push(testEvent(int64((i*11)%total), "r", fmt.Sprintf("f%02d.txt", i))))
	}

	result, finishErr := acc.Finish()
	require.NoError(t, finishErr)
	require.Greater(t, acc.Spills(), 2)

	chunks := session.Chunks()

	got := collectStream(t, result)
	require.Len(t, got, total)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Compare(got[i]), 0)
	}

	for _, chunk := range chunks {
		_, statErr := os.Stat(chunk)
		assert.True(t, os.IsNotExist(statErr), "exhausted chunks are deleted during merge")
	}
}

func TestSortResult_ModeEquivalence(t *testing.T) {
	t.Parallel()

	events := make([]gource.Event, 0, 200)
	for i := range 200 {
		events = append(events, gource.Event{
			Timestamp: int64((i * 13) % 40),
			Author:    fmt.Sprintf("dev%d", i%5),
			Repo:      fmt.Sprintf("repo%d", i%3),
			Path:      fmt.Sprintf("dir%d/file%d.go", i%4, i%7),
			Action:    gource.Action(i % 3),
		})
	}

	inMemory := NewAccumulator(nil, 1)
	for _, ev := range events {
		require.NoError(t, inMemory.Push(ev))
	}

	memResult, err := inMemory.Finish()
	require.NoError(t, err)

	memOrder := collectStream(t, memResult)

	session, sessionErr := NewSession(t.TempDir())
	require.NoError(t, sessionErr)

	t.Cleanup(func() { _ = session.Close() })

	external := NewAccumulator(session, 256)
	for _, ev := range events {
		require.NoError(t, external.Push(ev))
	}

	extResult, finishErr := external.Finish()
	require.NoError(t, finishErr)
	require.False(t, extResult.InMemory())

	extOrder := collectStream(t, extResult)

	assert.Equal(t, memOrder, extOrder, "both modes produce identical sequences")
}

func TestMergeStream_TieBreakAcrossChunks(t *testing.T) {
	t.Parallel()

	session, err := NewSession(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = session.Close() })

	// One chunk per push: every record has the same timestamp, so the
	// merge must fall back to the repository and path keys.
	acc := NewAccumulator(session, 1)
	require.NoError(t, acc.Push(testEvent(9, "zeta", "a.txt")))
	require.NoError(t, acc.Push(testEvent(9, "alpha", "b.txt")))
	require.NoError(t, acc.Push(testEvent(9, "alpha", "a.txt")))

	result, finishErr := acc.Finish()
	require.NoError(t, finishErr)

	got := collectStream(t, result)
	require.Len(t, got, 3)

	assert.Equal(t, "alpha", got[0].Repo)
	assert.Equal(t, "a.txt", got[0].Path)
	assert.Equal(t, "alpha", got[1].Repo)
	assert.Equal(t, "b.txt", got[1].Path)
	assert.Equal(t, "zeta", got[2].Repo)
}

func TestSortResult_StreamCorruptChunk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "chunk-00000.lz4")

	file, err := os.Create(path)
	require.NoError(t, err)

	// A valid lz4 frame holding a record header that promises more
	// payload than the frame contains.
	compressor := lz4.NewWriter(file)
	_, writeErr := compressor.Write([]byte{0x40, 0x00, 0x01, 0x02, 0x03})
	require.NoError(t, writeErr)
	require.NoError(t, compressor.Close())
	require.NoError(t, file.Close())

	result := &SortResult{chunks: []string{path}}

	_, streamErr := result.Stream()
	require.ErrorIs(t, streamErr, ErrChunkCorrupt)
}

func TestMergeStream_CloseDiscardsRemaining(t *testing.T) {
	t.Parallel()

	session, err := NewSession(t.TempDir())
	require.NoError(t, err)

	acc := NewAccumulator(session, 1)
	require.NoError(t, acc.Push(testEvent(1, "r", "a.txt")))
	require.NoError(t, acc.Push(testEvent(2, "r", "b.txt")))

	result, finishErr := acc.Finish()
	require.NoError(t, finishErr)

	stream, streamErr := result.Stream()
	require.NoError(t, streamErr)

	// Abandon the stream after one event; Close must still delete the
	// unread chunk files.
	_, nextErr := stream.Next()
	require.NoError(t, nextErr)
	require.NoError(t, stream.Close())

	for _, chunk := range session.Chunks() {
		_, statErr := os.Stat(chunk)
		assert.True(t, os.IsNotExist(statErr))
	}

	require.NoError(t, session.Close())
}
