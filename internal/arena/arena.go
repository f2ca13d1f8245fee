// Package arena implements the bump allocator and six-kind object pool
// that back every other IR subsystem (C1).
//
// Unlike the original C implementation, which recycles freed pool slots
// by raw pointer arithmetic, this package follows spec.md's Design Notes
// §9: a Pool hands out dense integer Handles, and its free list is a
// vector of those handles. Arena.Alloc returns byte slices carved from
// its chunks; an arena allocation is valid for the arena's whole
// lifetime, and nothing here ever moves or reclaims individual bytes
// before Drop.
package arena

// initialChunkSize is the initial chunk size in bytes; chunks double
// from here, capped at maxChunkSize.
const (
	initialChunkSize = 4096
	maxChunkSize     = 1 << 20
)

// Arena is a bump allocator over a slice of doubling byte chunks.
type Arena struct {
	chunks []*chunk
	cur    int // index into chunks of the chunk currently being bumped
}

type chunk struct {
	buf  []byte
	used int
}

// New returns a fresh, empty arena.
func New() *Arena {
	a := &Arena{}
	a.addChunk(initialChunkSize)
	return a
}

func (a *Arena) addChunk(size int) {
	a.chunks = append(a.chunks, &chunk{buf: make([]byte, size)})
	a.cur = len(a.chunks) - 1
}

func align(n, alignment int) int {
	if alignment <= 1 {
		return n
	}
	return (n + alignment - 1) &^ (alignment - 1)
}

// Alloc returns n zeroed bytes aligned to align, valid until Drop.
func (a *Arena) Alloc(n, alignment int) []byte {
	if n <= 0 {
		n = 1
	}
	c := a.chunks[a.cur]
	start := align(c.used, alignment)
	if start+n > len(c.buf) {
		next := len(c.buf) * 2
		if next > maxChunkSize {
			next = maxChunkSize
		}
		if next < n {
			next = n
		}
		a.addChunk(next)
		c = a.chunks[a.cur]
		start = 0
	}
	c.used = start + n
	return c.buf[start : start+n]
}

// Strdup copies s into the arena and returns the arena-owned copy.
func (a *Arena) Strdup(s string) string {
	b := a.Alloc(len(s), 1)
	copy(b, s)
	return string(b)
}

// Drop releases every chunk. Nothing allocated from a is valid afterward.
func (a *Arena) Drop() {
	a.chunks = nil
	a.cur = 0
}

// NumChunks reports how many backing chunks the arena has grown into,
// mostly useful for tests and the profiler's allocation tally.
func (a *Arena) NumChunks() int { return len(a.chunks) }
