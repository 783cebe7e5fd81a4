//go:build js && wasm

package main

import (
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-stems/engine"
	"github.com/cwbudde/algo-stems/separation"
	"github.com/cwbudde/algo-stems/stems"
)

const maxFrames = 128

var (
	proc         *engine.Processor
	sampleRate   int
	block        *stems.Buffer
	inputBuffer  []float32
	outputBuffer []float32
	events       []engine.Event
)

func main() {
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmLoadModel", js.FuncOf(wasmLoadModel))
	js.Global().Set("wasmNoteOn", js.FuncOf(wasmNoteOn))
	js.Global().Set("wasmNoteOff", js.FuncOf(wasmNoteOff))
	js.Global().Set("wasmSetParameter", js.FuncOf(wasmSetParameter))
	js.Global().Set("wasmSelectStem", js.FuncOf(wasmSelectStem))
	js.Global().Set("wasmCapture", js.FuncOf(wasmCapture))
	js.Global().Set("wasmGetInputPointer", js.FuncOf(wasmGetInputPointer))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM stems module loaded")
	<-c
}

func newProcessor(loader separation.Loader) {
	if proc != nil {
		proc.Release()
	}
	proc = engine.NewProcessor(engine.NewDefaultConfig(), loader)
	proc.Prepare(sampleRate, maxFrames)
	events = events[:0]
}

// wasmInit(sampleRate) starts the engine with the fixed-gain reference split.
func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	sampleRate = args[0].Int()
	block = stems.NewBuffer(2, maxFrames)
	inputBuffer = make([]float32, maxFrames*2)
	outputBuffer = make([]float32, maxFrames*2)
	newProcessor(separation.ReferenceLoader)

	println("Stems engine initialized at", sampleRate, "Hz")
	return nil
}

// wasmLoadModel(json) swaps in a band-split model descriptor.
func wasmLoadModel(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || proc == nil {
		return false
	}
	d, err := separation.ParseDescriptor([]byte(args[0].String()))
	if err != nil {
		println("Failed to load model:", err.Error())
		return false
	}
	newProcessor(separation.LoaderFunc(func(_ string, sr int) (separation.Model, error) {
		return separation.NewBandSplit(d, sr)
	}))
	if proc.Separator().UsingFallback() {
		println("Model rejected, using pass-through")
		return false
	}
	return true
}

func wasmNoteOn(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || proc == nil {
		return nil
	}
	events = append(events, engine.NoteOn(0, args[0].Int(), float32(args[1].Int())/127))
	return nil
}

func wasmNoteOff(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || proc == nil {
		return nil
	}
	events = append(events, engine.NoteOff(0, args[0].Int()))
	return nil
}

// wasmSetParameter(id, value) returns the value actually stored.
func wasmSetParameter(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || proc == nil {
		return nil
	}
	id := engine.ParamID(args[0].Int())
	if !id.Valid() {
		return nil
	}
	proc.SetParameter(id, float32(args[1].Float()))
	return proc.Parameter(id)
}

func wasmSelectStem(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || proc == nil {
		return nil
	}
	proc.SetSelectedStem(stems.Kind(args[0].Int()))
	return nil
}

// wasmCapture arms a capture of the next input block.
func wasmCapture(this js.Value, args []js.Value) interface{} {
	if proc != nil {
		proc.RequestCapture()
	}
	return nil
}

// wasmGetInputPointer returns where JS writes the next interleaved stereo input block.
func wasmGetInputPointer(this js.Value, args []js.Value) interface{} {
	if len(inputBuffer) == 0 {
		return 0
	}
	return js.ValueOf(uintptr(unsafe.Pointer(&inputBuffer[0])))
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || proc == nil {
		return 0
	}
	numFrames := min(max(args[0].Int(), 0), maxFrames)

	block.SetSize(2, numFrames)
	left, right := block.Channel(0), block.Channel(1)
	for i := 0; i < numFrames; i++ {
		left[i] = inputBuffer[2*i]
		right[i] = inputBuffer[2*i+1]
	}

	proc.Process(block, events)
	events = events[:0]

	for i := 0; i < numFrames; i++ {
		outputBuffer[2*i] = left[i]
		outputBuffer[2*i+1] = right[i]
	}
	return js.ValueOf(uintptr(unsafe.Pointer(&outputBuffer[0])))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
