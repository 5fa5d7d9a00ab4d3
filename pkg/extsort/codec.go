package extsort

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
	"github.com/Sumatoshi-tech/gourcefang/pkg/safeconv"
)

// Chunk record layout, little-endian throughout:
//
//	u16 payload length
//	i64 timestamp, u8 action
//	u16 length + author bytes
//	u16 length + repo bytes
//	u16 length + path bytes
//
// Records are self-describing and read back in write order, which
// preserves the sorted order of the chunk.
const (
	recordHeaderSize = 2
	recordFixedSize  = 8 + 1 + 2 + 2 + 2
	maxRecordPayload = math.MaxUint16
)

var (
	// ErrRecordTooLarge indicates an event whose serialized form exceeds
	// the u16 payload bound. Ordering downstream cannot be trusted once a
	// record is dropped, so this aborts the run.
	ErrRecordTooLarge = errors.New("event exceeds maximum record size")

	// ErrChunkCorrupt indicates a chunk record that cannot be decoded.
	ErrChunkCorrupt = errors.New("corrupt chunk record")
)

// recordSize is the exact on-disk size of an event before compression.
// The accumulator sums it for spill accounting.
func recordSize(ev gource.Event) int {
	return recordHeaderSize + recordFixedSize + len(ev.Author) + len(ev.Repo) + len(ev.Path)
}

// appendRecord serializes one event onto buf and returns the extended
// slice.
func appendRecord(buf []byte, ev gource.Event) ([]byte, error) {
	payload := recordFixedSize + len(ev.Author) + len(ev.Repo) + len(ev.Path)
	if payload > maxRecordPayload {
		return nil, fmt.Errorf("%d byte payload: %w", payload, ErrRecordTooLarge)
	}

	buf = binary.LittleEndian.AppendUint16(buf, safeconv.MustIntToUint16(payload))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ev.Timestamp))
	buf = append(buf, byte(ev.Action))
	buf = appendLenPrefixed(buf, ev.Author)
	buf = appendLenPrefixed(buf, ev.Repo)
	buf = appendLenPrefixed(buf, ev.Path)

	return buf, nil
}

func appendLenPrefixed(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, safeconv.MustIntToUint16(len(s)))

	return append(buf, s...)
}

// readRecord decodes the next event from r, reusing buf for the payload.
// Returns io.EOF exactly at a record boundary; anything else unreadable
// wraps ErrChunkCorrupt.
func readRecord(r io.Reader, buf []byte) (gource.Event, []byte, error) {
	var header [recordHeaderSize]byte

	_, headerErr := io.ReadFull(r, header[:])
	if headerErr != nil {
		if errors.Is(headerErr, io.EOF) {
			return gource.Event{}, buf, io.EOF
		}

		return gource.Event{}, buf, fmt.Errorf("%w: header: %s", ErrChunkCorrupt, headerErr)
	}

	payload := int(binary.LittleEndian.Uint16(header[:]))
	if payload < recordFixedSize {
		return gource.Event{}, buf, fmt.Errorf("%w: payload length %d", ErrChunkCorrupt, payload)
	}

	if cap(buf) < payload {
		buf = make([]byte, payload)
	}

	buf = buf[:payload]

	_, payloadErr := io.ReadFull(r, buf)
	if payloadErr != nil {
		return gource.Event{}, buf, fmt.Errorf("%w: payload: %s", ErrChunkCorrupt, payloadErr)
	}

	ev, decodeErr := decodeRecord(buf)
	if decodeErr != nil {
		return gource.Event{}, buf, decodeErr
	}

	return ev, buf, nil
}

func decodeRecord(payload []byte) (gource.Event, error) {
	ev := gource.Event{
		Timestamp: int64(binary.LittleEndian.Uint64(payload[0:8])),
		Action:    gource.Action(payload[8]),
	}

	if ev.Action > gource.ActionDeleted {
		return gource.Event{}, fmt.Errorf("%w: unknown action %d", ErrChunkCorrupt, payload[8])
	}

	rest := payload[9:]

	var err error

	ev.Author, rest, err = takeLenPrefixed(rest)
	if err != nil {
		return gource.Event{}, err
	}

	ev.Repo, rest, err = takeLenPrefixed(rest)
	if err != nil {
		return gource.Event{}, err
	}

	ev.Path, rest, err = takeLenPrefixed(rest)
	if err != nil {
		return gource.Event{}, err
	}

	if len(rest) != 0 {
		return gource.Event{}, fmt.Errorf("%w: %d trailing bytes", ErrChunkCorrupt, len(rest))
	}

	return ev, nil
}

func takeLenPrefixed(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, fmt.Errorf("%w: truncated string length", ErrChunkCorrupt)
	}

	n := int(binary.LittleEndian.Uint16(b))
	b = b[2:]

	if len(b) < n {
		return "", nil, fmt.Errorf("%w: string length %d exceeds payload", ErrChunkCorrupt, n)
	}

	return string(b[:n]), b[n:], nil
}
