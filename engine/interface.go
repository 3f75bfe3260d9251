package engine

// Window is a view over an input or output region. len(Buf) is the capacity and Pos is
// how much has been consumed (input) or produced (output). Pos never exceeds len(Buf)
// and an Engine only ever moves it forward.
type Window struct {
	Buf []byte
	Pos int
}

// Remaining returns the unconsumed (or unfilled) part of the window.
func (w *Window) Remaining() []byte {
	return w.Buf[w.Pos:]
}

// Engine is a stateful streaming decoder. One Engine belongs to exactly one session.
type Engine interface {
	// Magic is the fixed signature that starts every regular frame.
	Magic() []byte
	// InSize is the recommended minimum input region size.
	InSize() int
	// OutSize is the recommended minimum output region size.
	OutSize() int
	// Decode consumes input starting at in.Pos and produces output starting at out.Pos.
	// It returns 0 when a frame has been completed and all of its output has been
	// produced, or a positive hint while the current frame needs more work. The final
	// byte of a frame is not consumed until all of the frame's output has been produced.
	// After a frame completes the Engine is ready for the next frame.
	Decode(out, in *Window) (int, error)
	// Close releases the decoding context. It is safe to call more than once.
	Close() error
}

// Options limit the resources a single Engine may use.
type Options struct {
	MaxFrameSize int    // Largest compressed frame that will be accumulated.
	MaxMemory    uint64 // Decoder memory limit. Also caps the window.
	MaxWindow    uint64 // Largest zstd window or xz dictionary accepted.
}

// DefaultOptions returns the limits used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxFrameSize: 256 << 20,
		MaxMemory:    1 << 30,
		MaxWindow:    128 << 20,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = def.MaxFrameSize
	}
	if o.MaxMemory == 0 {
		o.MaxMemory = def.MaxMemory
	}
	if o.MaxWindow == 0 {
		o.MaxWindow = def.MaxWindow
	}
	return o
}

func (o Options) windowLimit() uint64 {
	if o.MaxMemory < o.MaxWindow {
		return o.MaxMemory
	}
	return o.MaxWindow
}
