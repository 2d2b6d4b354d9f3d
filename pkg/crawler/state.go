package crawler

import (
	"igleads/pkg/checkpoint"
	"igleads/pkg/models"
)

// state is the traversal bookkeeping shared by the workers of one run.
// All access goes through Engine.mu.
type state struct {
	seeds    []models.Handle
	depth    int
	frontier []models.Handle
	next     []models.Handle

	visited    map[models.Handle]struct{}
	visitOrder []models.Handle
	// seen holds every handle ever queued so a neighbor is appended once
	seen map[models.Handle]struct{}
	// reexpand holds emitted handles whose expansion was cancelled
	reexpand []models.Handle

	emitted    int
	categories map[models.Category]int
	processed  int

	capped       bool
	depthLimited bool
}

func newState(seeds []models.Handle) *state {
	st := &state{
		visited:    make(map[models.Handle]struct{}),
		seen:       make(map[models.Handle]struct{}),
		categories: make(map[models.Category]int),
		seeds:      seeds,
	}
	for _, h := range seeds {
		st.enqueueCurrent(h)
	}
	return st
}

// stateFromCheckpoint rebuilds traversal state from a saved snapshot
func stateFromCheckpoint(cp *checkpoint.Checkpoint) *state {
	st := &state{
		depth:      cp.Depth,
		visited:    make(map[models.Handle]struct{}, len(cp.Visited)),
		seen:       make(map[models.Handle]struct{}, len(cp.Visited)+len(cp.Frontier)),
		categories: make(map[models.Category]int),
		emitted:    cp.Emitted,
	}
	st.seeds, _ = models.NormalizeHandles(cp.Seeds)
	for _, raw := range cp.Visited {
		h := models.NormalizeHandle(raw)
		if h == "" {
			continue
		}
		st.visit(h)
		st.seen[h] = struct{}{}
	}
	for _, raw := range cp.Frontier {
		st.enqueueCurrent(models.NormalizeHandle(raw))
	}
	for _, raw := range cp.Next {
		st.enqueueNext(models.NormalizeHandle(raw))
	}
	for _, raw := range cp.Reexpand {
		if h := models.NormalizeHandle(raw); models.ValidHandle(h) {
			st.reexpand = append(st.reexpand, h)
		}
	}
	for name, n := range cp.Categories {
		if c, ok := models.ParseCategory(name); ok {
			st.categories[c] = n
		}
	}
	return st
}

func (st *state) enqueueCurrent(h models.Handle) bool {
	if !st.admit(h) {
		return false
	}
	st.frontier = append(st.frontier, h)
	return true
}

func (st *state) enqueueNext(h models.Handle) bool {
	if !st.admit(h) {
		return false
	}
	st.next = append(st.next, h)
	return true
}

func (st *state) admit(h models.Handle) bool {
	if !models.ValidHandle(h) {
		return false
	}
	if _, ok := st.seen[h]; ok {
		return false
	}
	st.seen[h] = struct{}{}
	return true
}

func (st *state) isVisited(h models.Handle) bool {
	_, ok := st.visited[h]
	return ok
}

func (st *state) visit(h models.Handle) {
	if st.isVisited(h) {
		return
	}
	st.visited[h] = struct{}{}
	st.visitOrder = append(st.visitOrder, h)
}

// unvisit returns a handle whose processing never started to the pending set
func (st *state) unvisit(h models.Handle) {
	delete(st.visited, h)
	for i := len(st.visitOrder) - 1; i >= 0; i-- {
		if st.visitOrder[i] == h {
			st.visitOrder = append(st.visitOrder[:i], st.visitOrder[i+1:]...)
			break
		}
	}
}

// pending returns the current depth's handles that have not been visited
func (st *state) pending() []models.Handle {
	out := make([]models.Handle, 0, len(st.frontier))
	for _, h := range st.frontier {
		if !st.isVisited(h) {
			out = append(out, h)
		}
	}
	return out
}

// advance moves to the next depth. It reports false when nothing is queued.
func (st *state) advance() bool {
	if len(st.next) == 0 {
		return false
	}
	st.depth++
	st.frontier = st.next
	st.next = nil
	return true
}

func (st *state) snapshot(runID string, opts Options) *checkpoint.Checkpoint {
	cp := &checkpoint.Checkpoint{
		RunID:       runID,
		Seeds:       handleStrings(st.seeds),
		MaxDepth:    opts.MaxDepth,
		MaxProfiles: opts.MaxProfiles,
		Depth:       st.depth,
		Visited:     handleStrings(st.visitOrder),
		Frontier:    handleStrings(st.pending()),
		Next:        handleStrings(st.next),
		Reexpand:    handleStrings(st.reexpand),
		Emitted:     st.emitted,
		Categories:  make(map[string]int, len(st.categories)),
	}
	for c, n := range st.categories {
		cp.Categories[string(c)] = n
	}
	return cp
}

func handleStrings(handles []models.Handle) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = h.String()
	}
	return out
}
