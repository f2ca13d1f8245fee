package arena

import "sync"

// Kind identifies which of the six pool shapes a slot belongs to.
type Kind int

const (
	KindInstruction Kind = iota
	KindBasicBlock
	KindValue
	KindType
	KindVarVersion
	KindPhi
)

func (k Kind) String() string {
	switch k {
	case KindInstruction:
		return "instruction"
	case KindBasicBlock:
		return "basic_block"
	case KindValue:
		return "value"
	case KindType:
		return "type"
	case KindVarVersion:
		return "var_version"
	case KindPhi:
		return "phi"
	default:
		return "unknown"
	}
}

// Handle is a dense integer index into a Pool's storage. It never
// aliases caller-visible memory directly, so Free cannot invalidate a
// live reference the way a freed pointer would.
type Handle int

// Pool is a typed free-list of K-shaped slots with its own slot
// storage. Free pushes the slot's handle onto freeList and leaves the
// slot's contents in place; Alloc zeroes a reused slot before handing
// it out again.
//
// storage holds one heap-allocated T per slot rather than a flat []T:
// growing the slot vector only ever moves pointers, never the T values
// themselves, so a *T handed out by Ptr stays valid across later Allocs
// the way a dense-index-only design requires.
type Pool[T any] struct {
	mu       sync.Mutex
	kind     Kind
	storage  []*T
	freeList []Handle
	hits     int
	misses   int
}

// NewPool creates an empty pool of the given kind.
func NewPool[T any](kind Kind) *Pool[T] {
	return &Pool[T]{kind: kind}
}

// Alloc returns a recycled slot if one is free, otherwise grows storage.
// Every returned slot is zero-valued.
func (p *Pool[T]) Alloc() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.freeList); n > 0 {
		h := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		var zero T
		*p.storage[h] = zero
		p.hits++
		return h
	}

	p.misses++
	p.storage = append(p.storage, new(T))
	return Handle(len(p.storage) - 1)
}

// Free pushes h back onto the free list for reuse as the same kind.
func (p *Pool[T]) Free(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeList = append(p.freeList, h)
}

// Get dereferences a handle. The zero value is returned for an
// out-of-range handle rather than panicking, mirroring "undefined, not
// memory-unsafe" for misuse of an unowned handle.
func (p *Pool[T]) Get(h Handle) T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(h) < 0 || int(h) >= len(p.storage) {
		var zero T
		return zero
	}
	return *p.storage[h]
}

// Set overwrites the slot at h.
func (p *Pool[T]) Set(h Handle, v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(h) >= 0 && int(h) < len(p.storage) {
		*p.storage[h] = v
	}
}

// Ptr returns the stable address of the slot at h, for callers that
// need to build up a value in place (e.g. a graph node with fields
// filled in after allocation) rather than through Get/Set round trips.
// It panics on an out-of-range handle, unlike Get/Set, since callers
// that reach for Ptr are dereferencing immediately.
func (p *Pool[T]) Ptr(h Handle) *T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.storage[h]
}

// Stats are the pool's hit/miss/fragmentation counters (C11 feeds on these).
type Stats struct {
	Kind             Kind
	Hits             int
	Misses           int
	FreeListLength   int
	TotalAllocations int
}

// HitRate is hits / (hits+misses); zero when nothing has been allocated yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// FragmentationRate is free-list length / total allocations, the
// surrogate spec.md §4.1 defines (it is not a byte-level measure).
func (s Stats) FragmentationRate() float64 {
	if s.TotalAllocations == 0 {
		return 0
	}
	return float64(s.FreeListLength) / float64(s.TotalAllocations)
}

// Stats snapshots the pool's counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Kind:             p.kind,
		Hits:             p.hits,
		Misses:           p.misses,
		FreeListLength:   len(p.freeList),
		TotalAllocations: p.hits + p.misses,
	}
}
