package score

import (
	"testing"

	"github.com/cwbudde/algo-stems/engine"
)

func TestParse(t *testing.T) {
	notes, err := Parse("0:60, 0.5:61:0.7, 1:62:0.5:0.25,")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("note count mismatch: got=%d want=3", len(notes))
	}
	if notes[0].Velocity != 1 || notes[0].Length != 0 {
		t.Fatalf("defaults mismatch: %+v", notes[0])
	}
	if notes[1].At != 0.5 || notes[1].Note != 61 || notes[1].Velocity != 0.7 {
		t.Fatalf("second note mismatch: %+v", notes[1])
	}
	if notes[2].Length != 0.25 {
		t.Fatalf("length mismatch: %+v", notes[2])
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"60", "x:60", "0:128", "0:60:1.5", "0:60:1:-1", "0:60:1:1:1"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestScheduleAndBlockEvents(t *testing.T) {
	events := Schedule([]Note{
		{At: 0.01, Note: 60, Velocity: 1, Length: 0.01},
		{At: 0.02, Note: 61, Velocity: 1},
	}, 1000)
	if len(events) != 3 {
		t.Fatalf("event count mismatch: got=%d want=3", len(events))
	}
	// The note-off at frame 20 must precede the note-on at frame 20.
	if events[1].Event.Type != engine.EventNoteOff || events[2].Event.Type != engine.EventNoteOn {
		t.Fatalf("ordering mismatch: %+v", events)
	}
	if got := End(events); got != 21 {
		t.Fatalf("end mismatch: got=%d want=21", got)
	}

	got := BlockEvents(nil, events, 16, 8)
	if len(got) != 2 {
		t.Fatalf("block event count mismatch: got=%d want=2", len(got))
	}
	if got[0].Offset != 4 || got[1].Offset != 4 {
		t.Fatalf("offset mismatch: got=%d,%d want=4,4", got[0].Offset, got[1].Offset)
	}
	if got := BlockEvents(got, events, 0, 8); len(got) != 0 {
		t.Fatalf("expected no events in first block, got=%d", len(got))
	}
}
