package stems

// Kind identifies one of the four separated stems.
type Kind int

const (
	Drums Kind = iota
	Bass
	Other
	Vocals
)

// Count is the number of stems produced by separation.
const Count = 4

var kindNames = [Count]string{"drums", "bass", "other", "vocals"}

// Kinds lists all stems in buffer order.
var Kinds = [Count]Kind{Drums, Bass, Other, Vocals}

// Valid reports whether k indexes a stem.
func (k Kind) Valid() bool {
	return k >= 0 && k < Count
}

func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps a stem name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return -1, false
}

// KindForNote maps a MIDI note to the stem it triggers (note mod 4).
func KindForNote(note int) Kind {
	k := note % Count
	if k < 0 {
		k += Count
	}
	return Kind(k)
}

// Set holds one buffer per stem.
type Set [Count]*Buffer

// NewSet allocates four buffers of the given shape.
func NewSet(numChannels, numSamples int) *Set {
	var s Set
	for i := range s {
		s[i] = NewBuffer(numChannels, numSamples)
	}
	return &s
}

// SetSize resizes every buffer in the set.
func (s *Set) SetSize(numChannels, numSamples int) {
	for i := range s {
		if s[i] == nil {
			s[i] = NewBuffer(numChannels, numSamples)
			continue
		}
		s[i].SetSize(numChannels, numSamples)
	}
}

// Clear zeroes every buffer in the set.
func (s *Set) Clear() {
	for _, b := range s {
		if b != nil {
			b.Clear()
		}
	}
}
