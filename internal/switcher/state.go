package switcher

import (
	"sort"
	"sync"
)

// Tally is the decoded tally condition of one source. Replaced wholesale on
// every update for a source index.
type Tally struct {
	Program    bool
	Preview    bool
	Brightness int // 0..3, max of the raw program/preview levels
}

// Source is one row of the source table, keyed by protocol source index.
type Source struct {
	Index       int
	BusLabel    string
	SourceLabel string
	Tally       Tally
}

// State tracks which source is current on program and preview for every bus
// label seen since the last reset. Single writer (the protocol decoder);
// readers get copies, never references into the maps.
type State struct {
	mu      sync.RWMutex
	sources map[int]Source
	program map[string]int
	preview map[string]int
}

func NewState() *State {
	s := &State{}
	s.resetLocked()
	return s
}

func (s *State) resetLocked() {
	s.sources = make(map[int]Source)
	s.program = make(map[string]int)
	s.preview = make(map[string]int)
}

// Reset clears the source table and both bus maps atomically. Called whenever
// the transport detects a fresh physical connection, because indices and bus
// labels can be stale from a previous device.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Update records the latest tally/label report for a source and returns the
// bus label if the report constitutes a real program reassignment on that bus.
//
// The first program-true report for a bus initializes the map without
// signaling change: that is the device dumping its state on connect, not an
// editorial decision.
func (s *State) Update(index int, tally Tally, busLabel, sourceLabel string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources[index] = Source{
		Index:       index,
		BusLabel:    busLabel,
		SourceLabel: sourceLabel,
		Tally:       tally,
	}

	changed := false
	if tally.Program {
		prev, seen := s.program[busLabel]
		s.program[busLabel] = index
		if seen && prev != index {
			changed = true
		}
	}
	if tally.Preview {
		s.preview[busLabel] = index
	}

	if changed {
		return busLabel, true
	}
	return "", false
}

// ProgramSource returns the source currently on program for bus, if any.
func (s *State) ProgramSource(bus string) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.program[bus]
	if !ok {
		return Source{}, false
	}
	src, ok := s.sources[idx]
	return src, ok
}

// PreviewSource returns the source currently on preview for bus, if any.
func (s *State) PreviewSource(bus string) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.preview[bus]
	if !ok {
		return Source{}, false
	}
	src, ok := s.sources[idx]
	return src, ok
}

// Source returns the last reported state for a source index.
func (s *State) Source(index int) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[index]
	return src, ok
}

// BusLabels returns the sorted set of bus labels with a program source.
func (s *State) BusLabels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	labels := make([]string, 0, len(s.program))
	for label := range s.program {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Sources returns a copy of the full source table.
func (s *State) Sources() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
