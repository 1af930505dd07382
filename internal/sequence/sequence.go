// internal/sequence/sequence.go
package sequence

import "sync/atomic"

// Generator issues strictly increasing identifiers starting at 1.
// Each entity kind owns its own Generator.
type Generator struct {
	last atomic.Int64
}

// New creates a generator whose first issued value is 1.
func New() *Generator {
	return &Generator{}
}

// Next returns the next identifier.
func (g *Generator) Next() int64 {
	return g.last.Add(1)
}

// Current returns the last issued identifier, or 0 if none has been issued.
func (g *Generator) Current() int64 {
	return g.last.Load()
}

// Observe records that id is already in use, so Next never returns it or anything below it.
func (g *Generator) Observe(id int64) {
	for {
		cur := g.last.Load()
		if id <= cur {
			return
		}
		if g.last.CompareAndSwap(cur, id) {
			return
		}
	}
}
