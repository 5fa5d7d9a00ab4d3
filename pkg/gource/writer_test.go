package gource

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWriter_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	lw := NewLogWriter(&buf)

	events := []Event{
		{Timestamp: 50, Author: "Jane Doe", Repo: "", Path: "b.txt", Action: ActionModified},
		{Timestamp: 75, Author: "bob", Repo: "svc", Path: "c.txt", Action: ActionDeleted},
		{Timestamp: 100, Author: "ann", Repo: "svc", Path: "a.txt", Action: ActionAdded},
	}

	for _, ev := range events {
		require.NoError(t, lw.Write(ev))
	}

	require.NoError(t, lw.Flush())

	want := "50|Jane Doe|M|b.txt\n" +
		"75|bob|D|svc/c.txt\n" +
		"100|ann|A|svc/a.txt\n"
	assert.Equal(t, want, buf.String())
}

func TestLogWriter_QuotesDelimiterInPath(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	lw := NewLogWriter(&buf)

	ev := Event{Timestamp: 1, Author: "ann", Path: "odd|name.txt", Action: ActionAdded}
	require.NoError(t, lw.Write(ev))
	require.NoError(t, lw.Flush())

	assert.Equal(t, "1|ann|A|\"odd|name.txt\"\n", buf.String())
}

func TestLogWriter_ColorField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	lw := NewLogWriter(&buf)
	lw.ColorFor = func(path string) string {
		assert.Equal(t, "svc/main.go", path)

		return "FF0000"
	}

	ev := Event{Timestamp: 9, Author: "ann", Repo: "svc", Path: "main.go", Action: ActionAdded}
	require.NoError(t, lw.Write(ev))
	require.NoError(t, lw.Flush())

	assert.Equal(t, "9|ann|A|svc/main.go|FF0000\n", buf.String())
}

func TestLogWriter_NegativeTimestamp(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	lw := NewLogWriter(&buf)

	ev := Event{Timestamp: -14, Author: "ann", Path: "old.txt", Action: ActionAdded}
	require.NoError(t, lw.Write(ev))
	require.NoError(t, lw.Flush())

	assert.Equal(t, "-14|ann|A|old.txt\n", buf.String())
}
