package pattern

import (
	"sync"
	"sync/atomic"
)

// snapshot is the immutable unit of publication. The scheduler reads
// one per loop iteration; editors swap whole snapshots, so an
// in-flight iteration never observes a half-applied mutation.
type snapshot struct {
	pattern Pattern
	params  SynthParams
}

// Store publishes pattern and parameter state from editor code to the
// scheduling loop. Reads are lock-free; writers serialize on a mutex
// and swap a fresh snapshot.
type Store struct {
	wmu sync.Mutex
	cur atomic.Pointer[snapshot]
}

func NewStore() *Store {
	st := &Store{}
	st.cur.Store(&snapshot{params: DefaultParams()})
	return st
}

// Snapshot returns a consistent pattern+params pair.
func (st *Store) Snapshot() (Pattern, SynthParams) {
	s := st.cur.Load()
	return s.pattern, s.params
}

// Pattern returns the current pattern.
func (st *Store) Pattern() Pattern {
	return st.cur.Load().pattern
}

// Params returns the current knob values, clamped.
func (st *Store) Params() SynthParams {
	return st.cur.Load().params
}

// SetPattern replaces the whole pattern.
func (st *Store) SetPattern(p Pattern) {
	st.wmu.Lock()
	defer st.wmu.Unlock()
	next := *st.cur.Load()
	next.pattern = p
	st.cur.Store(&next)
}

// SetStep replaces a single step. Out-of-range indexes are ignored.
func (st *Store) SetStep(i int, s Step) {
	if i < 0 || i >= Length {
		return
	}
	st.wmu.Lock()
	defer st.wmu.Unlock()
	next := *st.cur.Load()
	next.pattern[i] = s
	st.cur.Store(&next)
}

// SetParams replaces the knob values. Values are clamped on the way in.
func (st *Store) SetParams(p SynthParams) {
	st.wmu.Lock()
	defer st.wmu.Unlock()
	next := *st.cur.Load()
	next.params = p.Clamped()
	st.cur.Store(&next)
}
