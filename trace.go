package newton

import (
	"fmt"
	"io"
)

// State is the snapshot of one iteration: X is the estimate the step was
// taken from, Step the damped Newton step, so the next estimate is X - Step.
type State struct {
	K    int     `json:"k"`
	X    float64 `json:"x"`
	FX   float64 `json:"fx"`
	DFX  float64 `json:"dfx"`
	Step float64 `json:"step"`
}

// Tracer receives iteration states synchronously and in order.
type Tracer interface {
	Trace(State)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(State)

func (f TracerFunc) Trace(s State) { f(s) }

// Recorder is a Tracer that keeps every state.
type Recorder struct {
	States []State
}

func (r *Recorder) Trace(s State) { r.States = append(r.States, s) }

// WriterTracer prints one line per iteration in the classic
// "iter   k: x=..., f(x)=..., f'(x)=..., step=..." layout. Each line is
// written with a single Write call.
func WriterTracer(w io.Writer) Tracer {
	return TracerFunc(func(s State) {
		fmt.Fprintf(w, "iter %3d: x=% .12g, f(x)=% .12g, f'(x)=% .12g, step=% .12g\n",
			s.K, s.X, s.FX, s.DFX, s.Step)
	})
}
