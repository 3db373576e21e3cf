// Package stream decodes the line-oriented event stream returned by the
// counterargument agent into ordered content deltas.
//
// The wire format is SSE-shaped: relevant lines carry a "data:" prefix
// followed by either a JSON payload or the "[DONE]" sentinel. Payloads have
// drifted across agent versions, so the text may arrive under any of several
// field names; see fieldProbes for the resolution order.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// EventPrefix marks lines that carry a payload. All other lines are ignored.
const EventPrefix = "data:"

// DoneSentinel terminates the stream early. Buffered data after the
// sentinel is discarded, not flushed.
const DoneSentinel = "[DONE]"

// fieldProbes is the payload field resolution order. The first present
// string field wins and the rest are ignored. A true delta field outranks
// full-text shaped fields, which outrank legacy names. This order is a
// contract: reordering it changes which text older agent builds produce.
var fieldProbes = []string{"delta", "text", "content", "message"}

// Callbacks receives decoder output. OnStarted fires exactly once, on the
// first non-empty delta, so the consumer can leave its loading state.
// OnDelta receives each incremental fragment; the consumer owns the running
// total, the decoder never accumulates beyond the current line.
type Callbacks struct {
	OnStarted func()
	OnDelta   func(delta string)
}

// Decoder converts an incrementally-arriving byte stream into deltas.
type Decoder struct {
	reader  *bufio.Reader
	started bool
	deltas  int
}

// NewDecoder creates a decoder over r. Arbitrary chunk boundaries in the
// underlying reader are tolerated; a line split across reads is reassembled.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// DeltaCount reports how many non-empty deltas were delivered. A completed
// stream with zero deltas must be given fallback text by the consumer.
func (d *Decoder) DeltaCount() int {
	return d.deltas
}

// Process reads the stream to completion, invoking cb for each accepted
// delta. Malformed payloads are skipped, never fatal. A trailing line
// without a final newline is still processed at EOF.
func (d *Decoder) Process(ctx context.Context, cb Callbacks) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := d.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		atEOF := err == io.EOF

		if line != "" {
			if done := d.processLine(line, cb); done {
				return nil
			}
		}
		if atEOF {
			return nil
		}
	}
}

// processLine handles one candidate line, returning true on the end-of-stream
// sentinel.
func (d *Decoder) processLine(line string, cb Callbacks) bool {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, EventPrefix) {
		return false
	}

	payload := strings.TrimLeft(strings.TrimPrefix(line, EventPrefix), " \t")
	if payload == DoneSentinel {
		return true
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		// Malformed fragments are best-effort: skip, never abort.
		return false
	}

	delta := extractDelta(fields)
	if delta == "" {
		return false
	}

	if !d.started {
		d.started = true
		if cb.OnStarted != nil {
			cb.OnStarted()
		}
	}
	d.deltas++
	if cb.OnDelta != nil {
		cb.OnDelta(delta)
	}
	return false
}

// extractDelta resolves the payload text by probing fieldProbes in order.
// Exactly one field wins per event; events with no known field contribute
// no text.
func extractDelta(fields map[string]any) string {
	for _, name := range fieldProbes {
		if v, ok := fields[name]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			return ""
		}
	}
	return ""
}
