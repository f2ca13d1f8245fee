// Package stackcalc implements the stack-frame analyser (C12): a
// closed-form predictor for a function's stack-frame size, plus a
// richer per-function analyser that tracks individual usage
// contributions and warns on overflow.
//
// Grounded on
// original_source/ESC/src/core/utils/stack_calculator.c's
// es_predict_stack_usage (closed-form formula, constants, alignment)
// and its EsStackAnalyzer/EsStackFrame model (contribution tracking,
// depth bookkeeping, overflow/high-usage warnings).
package stackcalc

const (
	alignment   = 16
	minSize     = 128
	baseSize    = 16
	registerSize = 5 * 8
	paramThreshold = 6
)

// UsageType classifies one stack-frame contribution.
type UsageType int

const (
	UsageLocalVar UsageType = iota
	UsageTempValue
	UsageSavedReg
	UsageCallFrame
	UsageAlignmentPad
)

// Predict returns the closed-form predicted frame size for a function
// with paramCount parameters and localCount local variables:
// base(16) + max(0,params-6)*8 + locals*8 + 5*8 callee-saved registers,
// aligned up to 16 bytes, floored at 128.
func Predict(paramCount, localCount int) int {
	paramSize := 0
	if paramCount > paramThreshold {
		paramSize = (paramCount - paramThreshold) * 8
	}
	localSize := localCount * 8
	total := baseSize + paramSize + localSize + registerSize
	return alignAndFloor(total)
}

func alignAndFloor(size int) int {
	if size%alignment != 0 {
		size = ((size + alignment - 1) / alignment) * alignment
	}
	if size < minSize {
		size = minSize
	}
	return size
}

// Usage is one recorded contribution to a frame's layout.
type Usage struct {
	Offset      int
	Size        int
	Type        UsageType
	Description string
	Location    string // optional source location, e.g. "file.es:42"
}

// Frame tracks contributions for a single function activation.
type Frame struct {
	FunctionName string
	usages       []Usage
	usedSize     int
	maxUsage     int
	totalSize    int
}

// AddUsage appends a contribution and advances the running offset.
func (f *Frame) AddUsage(size int, typ UsageType, description, location string) {
	if size == 0 {
		return
	}
	u := Usage{
		Offset:      f.usedSize,
		Size:        size,
		Type:        typ,
		Description: description,
		Location:    location,
	}
	f.usages = append(f.usages, u)
	f.usedSize += size
	if f.usedSize > f.maxUsage {
		f.maxUsage = f.usedSize
	}
}

// Usages returns the recorded contributions in insertion order.
func (f *Frame) Usages() []Usage { return append([]Usage(nil), f.usages...) }

// OptimizeLayout fixes total_size from the accumulated used_size,
// aligned and floored.
func (f *Frame) OptimizeLayout() {
	f.totalSize = alignAndFloor(f.usedSize)
}

// TotalSize returns the frame's total size, computing it on demand
// from used_size if OptimizeLayout has not been called yet.
func (f *Frame) TotalSize() int {
	if f.totalSize == 0 {
		return alignAndFloor(f.usedSize)
	}
	return f.totalSize
}

// CheckOverflow reports whether the frame's total size exceeds limit,
// and separately whether max usage exceeds 80% of limit (a high-usage
// warning that does not itself count as overflow).
func (f *Frame) CheckOverflow(limit int) (overflow, highUsage bool) {
	required := f.TotalSize()
	if required > limit {
		return true, false
	}
	if limit > 0 && float64(f.maxUsage)/float64(limit) > 0.8 {
		return false, true
	}
	return false, false
}

// Analyzer tracks frames across a call-depth-tracked function walk.
type Analyzer struct {
	frames       []*Frame
	currentDepth int
	maxDepth     int
}

// NewAnalyzer creates an empty analyser.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// BeginFunction opens a new frame and increments the current depth.
func (a *Analyzer) BeginFunction(name string) *Frame {
	f := &Frame{FunctionName: name}
	a.frames = append(a.frames, f)
	a.currentDepth++
	if a.currentDepth > a.maxDepth {
		a.maxDepth = a.currentDepth
	}
	return f
}

// EndFunction closes the innermost open frame.
func (a *Analyzer) EndFunction() {
	if a.currentDepth == 0 {
		return
	}
	a.currentDepth--
}

// MaxDepth returns the deepest call nesting observed.
func (a *Analyzer) MaxDepth() int { return a.maxDepth }

// Frames returns all frames opened so far, in order.
func (a *Analyzer) Frames() []*Frame { return append([]*Frame(nil), a.frames...) }
