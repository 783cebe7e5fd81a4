// Package score parses note schedules for the command line tools and slices
// them into per-block engine events.
package score

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cwbudde/algo-stems/engine"
)

// Note is one scheduled note. A zero Length holds the note until the
// render ends.
type Note struct {
	At       float64
	Note     int
	Velocity float32
	Length   float64
}

// Timed is an engine event stamped with an absolute frame.
type Timed struct {
	Frame int
	Event engine.Event
}

// Parse reads "time:note[:velocity[:length]]" entries separated by commas.
func Parse(raw string) ([]Note, error) {
	var out []Note
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 4 {
			return nil, errors.Newf("invalid note %q (expected time:note[:velocity[:length]])", item)
		}
		at, err := strconv.ParseFloat(parts[0], 64)
		if err != nil || at < 0 {
			return nil, errors.Newf("invalid note time in %q", item)
		}
		note, err := strconv.Atoi(parts[1])
		if err != nil || note < 0 || note > 127 {
			return nil, errors.Newf("invalid note number in %q (expected 0..127)", item)
		}
		n := Note{At: at, Note: note, Velocity: 1}
		if len(parts) > 2 {
			v, err := strconv.ParseFloat(parts[2], 32)
			if err != nil || v < 0 || v > 1 {
				return nil, errors.Newf("invalid velocity in %q (expected 0..1)", item)
			}
			n.Velocity = float32(v)
		}
		if len(parts) > 3 {
			l, err := strconv.ParseFloat(parts[3], 64)
			if err != nil || l < 0 {
				return nil, errors.Newf("invalid length in %q", item)
			}
			n.Length = l
		}
		out = append(out, n)
	}
	return out, nil
}

// Schedule turns notes into frame-stamped events sorted by frame.
// Note-offs sort before note-ons on the same frame.
func Schedule(notes []Note, sampleRate int) []Timed {
	out := make([]Timed, 0, 2*len(notes))
	for _, n := range notes {
		start := int(n.At * float64(sampleRate))
		out = append(out, Timed{
			Frame: start,
			Event: engine.Event{Type: engine.EventNoteOn, Note: n.Note, Velocity: n.Velocity},
		})
		if n.Length > 0 {
			out = append(out, Timed{
				Frame: start + int(n.Length*float64(sampleRate)),
				Event: engine.Event{Type: engine.EventNoteOff, Note: n.Note},
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		return out[i].Event.Type == engine.EventNoteOff && out[j].Event.Type != engine.EventNoteOff
	})
	return out
}

// BlockEvents returns the events inside [start, start+n) with offsets
// relative to start. dst is reused.
func BlockEvents(dst []engine.Event, all []Timed, start, n int) []engine.Event {
	dst = dst[:0]
	for _, te := range all {
		if te.Frame < start {
			continue
		}
		if te.Frame >= start+n {
			break
		}
		ev := te.Event
		ev.Offset = te.Frame - start
		dst = append(dst, ev)
	}
	return dst
}

// End returns the frame after the last scheduled event, or 0.
func End(all []Timed) int {
	if len(all) == 0 {
		return 0
	}
	return all[len(all)-1].Frame + 1
}
