package gource

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// fieldDelimiter separates fields in the custom log format.
const fieldDelimiter = '|'

// LogWriter serializes ordered events into the Gource custom log format:
// one "timestamp|author|action|path" line per event. Events are written
// incrementally as they arrive; the writer never buffers the stream.
type LogWriter struct {
	csv *csv.Writer

	// ColorFor, when set, appends a per-file hex colour as a fifth field.
	// The function receives the display path of the event.
	ColorFor func(path string) string
}

// NewLogWriter wraps the destination sink. Fields containing the
// delimiter are quoted by the csv layer; author identities never contain
// a literal pipe because they are escaped upstream.
func NewLogWriter(w io.Writer) *LogWriter {
	cw := csv.NewWriter(w)
	cw.Comma = fieldDelimiter

	return &LogWriter{csv: cw}
}

// Write appends one event line to the sink.
func (lw *LogWriter) Write(ev Event) error {
	displayPath := ev.DisplayPath()

	record := []string{
		strconv.FormatInt(ev.Timestamp, 10),
		ev.Author,
		ev.Action.String(),
		displayPath,
	}

	if lw.ColorFor != nil {
		record = append(record, lw.ColorFor(displayPath))
	}

	err := lw.csv.Write(record)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// Flush drains buffered lines to the sink and reports any deferred write
// error. Must be called after the last event.
func (lw *LogWriter) Flush() error {
	lw.csv.Flush()

	err := lw.csv.Error()
	if err != nil {
		return fmt.Errorf("flush log: %w", err)
	}

	return nil
}
