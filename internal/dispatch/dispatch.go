// Package dispatch builds the task set of a filter run and splits it across
// a fixed number of worker ranks. Rank and size are injected explicitly
// (flags or scheduler environment); there is no ambient communicator.
package dispatch

import (
	"fmt"
	"strconv"
	"strings"
)

// Atomic identifies one (observation, wafer, frequency-channel) unit.
type Atomic struct {
	ObsID string
	Wafer string
	Freq  string
}

// Task pairs a simulation id with one atomic unit; it is the unit of
// distributed work.
type Task struct {
	SimID  int
	Atomic Atomic
}

// ParseSimIDs parses a simulation-id range of the form "7" or "3,12"
// (inclusive) into the expanded id list.
func ParseSimIDs(s string) ([]int, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		hi = lo
	}
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("invalid sim-ids %q: %w", s, err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("invalid sim-ids %q: %w", s, err)
	}
	if max < min {
		return nil, fmt.Errorf("invalid sim-ids %q: range is descending", s)
	}
	ids := make([]int, 0, max-min+1)
	for i := min; i <= max; i++ {
		ids = append(ids, i)
	}
	return ids, nil
}

// Dedup removes repeated atomics, preserving first-seen order.
func Dedup(atomics []Atomic) []Atomic {
	seen := make(map[Atomic]struct{}, len(atomics))
	out := make([]Atomic, 0, len(atomics))
	for _, a := range atomics {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Intersect keeps only atomics present in the allow set. A nil set keeps
// everything.
func Intersect(atomics []Atomic, allow map[Atomic]struct{}) []Atomic {
	if allow == nil {
		return atomics
	}
	out := make([]Atomic, 0, len(atomics))
	for _, a := range atomics {
		if _, ok := allow[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// BuildTasks forms the cross product of simulation ids and atomics,
// simulation id outermost, preserving input order.
func BuildTasks(simIDs []int, atomics []Atomic) []Task {
	tasks := make([]Task, 0, len(simIDs)*len(atomics))
	for _, id := range simIDs {
		for _, a := range atomics {
			tasks = append(tasks, Task{SimID: id, Atomic: a})
		}
	}
	return tasks
}

// Split returns the half-open index range [lo, hi) of the tasks owned by
// rank out of workers. Across all ranks the ranges cover 0..total exactly
// once, contiguously, with sizes differing by at most one.
func Split(total, workers, rank int) (lo, hi int) {
	if workers <= 0 || rank < 0 || rank >= workers {
		return 0, 0
	}
	base := total / workers
	rem := total % workers
	if rank < rem {
		lo = rank * (base + 1)
		return lo, lo + base + 1
	}
	lo = rem*(base+1) + (rank-rem)*base
	return lo, lo + base
}
