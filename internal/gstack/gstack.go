// Package gstack owns the per-goroutine state the span engine needs:
// the current-span stack, per-span entry depths, and the scoped
// collector override. Go has no goroutine-local storage, so state is
// keyed by goroutine ID in a sharded map; each State is only ever
// touched by its own goroutine, the shard lock covers nothing but the
// map itself.
package gstack

import (
	"sync"

	"github.com/petermattis/goid"

	"github.com/weftlog/weft/weftbase"
)

const shardCount = 64

type shard struct {
	lock   sync.Mutex
	states map[int64]*State
}

var shards [shardCount]shard

// State is the per-goroutine tracking block.
type State struct {
	gid      int64
	stack    []weftbase.ID
	depth    map[weftbase.ID]int
	override weftbase.Collector
}

func shardFor(gid int64) *shard {
	return &shards[uint64(gid)%shardCount]
}

// Current returns the calling goroutine's State, creating it if
// needed.
func Current() *State {
	gid := goid.Get()
	sh := shardFor(gid)
	sh.lock.Lock()
	defer sh.lock.Unlock()
	if sh.states == nil {
		sh.states = make(map[int64]*State)
	}
	st, ok := sh.states[gid]
	if !ok {
		st = &State{gid: gid}
		sh.states[gid] = st
	}
	return st
}

// Peek returns the calling goroutine's State without creating one.
func Peek() *State {
	gid := goid.Get()
	sh := shardFor(gid)
	sh.lock.Lock()
	defer sh.lock.Unlock()
	st := sh.states[gid]
	return st
}

// Release drops the State from the registry once it holds nothing.
// Called after pops and override restores so idle goroutines do not
// accumulate entries.
func (st *State) Release() {
	if len(st.stack) != 0 || len(st.depth) != 0 {
		return
	}
	sh := shardFor(st.gid)
	sh.lock.Lock()
	defer sh.lock.Unlock()
	if st.override != nil {
		return
	}
	delete(sh.states, st.gid)
}

// Push records entry into span id on this goroutine.
func (st *State) Push(id weftbase.ID) {
	st.stack = append(st.stack, id)
}

// Pop removes the most recent entry. Exits are strictly nested with
// entries, so the popped ID is always the caller's.
func (st *State) Pop() {
	if n := len(st.stack); n > 0 {
		st.stack = st.stack[:n-1]
	}
}

// Top returns the ID of the innermost entered span, if any.
func (st *State) Top() (weftbase.ID, bool) {
	if n := len(st.stack); n > 0 {
		return st.stack[n-1], true
	}
	return 0, false
}

// StackLen reports the current nesting depth of this goroutine.
func (st *State) StackLen() int { return len(st.stack) }

// IncDepth bumps the re-entrancy depth for id and reports the new
// depth. A result of 1 means this is the 0->1 transition.
func (st *State) IncDepth(id weftbase.ID) int {
	if st.depth == nil {
		st.depth = make(map[weftbase.ID]int)
	}
	st.depth[id]++
	return st.depth[id]
}

// DecDepth drops the re-entrancy depth for id and reports the new
// depth. A result of 0 means this is the 1->0 transition.
func (st *State) DecDepth(id weftbase.ID) int {
	if st.depth == nil {
		return 0
	}
	d := st.depth[id] - 1
	if d <= 0 {
		delete(st.depth, id)
		return 0
	}
	st.depth[id] = d
	return d
}

// SetOverride installs a scoped collector override for this goroutine
// and returns the previous override (nil if none). The shard lock is
// held because ForEachOverride reads overrides from other goroutines.
func (st *State) SetOverride(c weftbase.Collector) weftbase.Collector {
	sh := shardFor(st.gid)
	sh.lock.Lock()
	defer sh.lock.Unlock()
	prev := st.override
	st.override = c
	return prev
}

// Override returns this goroutine's collector override, or nil.
func (st *State) Override() weftbase.Collector {
	sh := shardFor(st.gid)
	sh.lock.Lock()
	defer sh.lock.Unlock()
	return st.override
}

// ForEachOverride visits every live goroutine override. Used when
// combining interest across all active collectors.
func ForEachOverride(f func(weftbase.Collector)) {
	for i := range shards {
		sh := &shards[i]
		sh.lock.Lock()
		overrides := make([]weftbase.Collector, 0, len(sh.states))
		for _, st := range sh.states {
			if st.override != nil {
				overrides = append(overrides, st.override)
			}
		}
		sh.lock.Unlock()
		for _, c := range overrides {
			f(c)
		}
	}
}
