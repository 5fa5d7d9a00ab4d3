package extsort

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
)

func TestRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	events := []gource.Event{
		{Timestamp: 1700000000, Author: "Jane Doe", Repo: "team/svc", Path: "cmd/main.go", Action: gource.ActionAdded},
		{Timestamp: -200, Author: "søren", Repo: "", Path: "日本語/ファイル.txt", Action: gource.ActionModified},
		{Timestamp: 0, Author: "", Repo: "r", Path: "", Action: gource.ActionDeleted},
	}

	var buf bytes.Buffer

	var scratch []byte

	for _, ev := range events {
		record, err := appendRecord(nil, ev)
		require.NoError(t, err)
		assert.Len(t, record, recordSize(ev), "recordSize must match the encoded length")

		buf.Write(record)
	}

	for _, want := range events {
		got, next, err := readRecord(&buf, scratch)
		require.NoError(t, err)

		scratch = next

		assert.Equal(t, want, got)
	}

	_, _, err := readRecord(&buf, scratch)
	require.ErrorIs(t, err, io.EOF)
}

func TestAppendRecord_TooLarge(t *testing.T) {
	t.Parallel()

	ev := gource.Event{Path: strings.Repeat("p", maxRecordPayload)}

	_, err := appendRecord(nil, ev)
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestReadRecord_Corruption(t *testing.T) {
	t.Parallel()

	valid, err := appendRecord(nil, gource.Event{Timestamp: 5, Author: "a", Path: "p", Action: gource.ActionAdded})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "truncated payload", data: valid[:len(valid)-2]},
		{name: "payload below fixed size", data: []byte{0x01, 0x00, 0xff}},
		{name: "unknown action", data: corruptAction(valid)},
		{name: "string length beyond payload", data: corruptStringLen(valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, readErr := readRecord(bytes.NewReader(tt.data), nil)
			require.ErrorIs(t, readErr, ErrChunkCorrupt)
		})
	}
}

// corruptAction flips the action byte to an undefined value.
func corruptAction(record []byte) []byte {
	out := bytes.Clone(record)
	out[recordHeaderSize+8] = 0x7f

	return out
}

// corruptStringLen inflates the author length prefix past the payload.
func corruptStringLen(record []byte) []byte {
	out := bytes.Clone(record)
	out[recordHeaderSize+9] = 0xff
	out[recordHeaderSize+10] = 0xff

	return out
}
