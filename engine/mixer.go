package engine

import "github.com/cwbudde/algo-stems/stems"

// Mix writes the stem buses into out according to snap. out is replaced,
// not added to. Buses must have the shape of out.
//
// OutputAll sums every stem scaled by its level. OutputSolo outputs only the
// selected stem scaled by its level.
func Mix(out *stems.Buffer, buses *stems.Set, snap Snapshot, selected stems.Kind) {
	out.Clear()
	numChannels := out.NumChannels()
	numSamples := out.NumSamples()
	for _, k := range stems.Kinds {
		if snap.OutputMode == OutputSolo && k != selected {
			continue
		}
		gain := snap.Levels[k]
		bus := buses[k]
		if gain == 0 || bus == nil {
			continue
		}
		for ch := 0; ch < min(numChannels, bus.NumChannels()); ch++ {
			out.AddFrom(ch, 0, bus, ch, 0, min(numSamples, bus.NumSamples()), gain)
		}
	}
}
