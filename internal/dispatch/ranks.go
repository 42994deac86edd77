package dispatch

import (
	"fmt"
	"strconv"
)

// Ranks is the worker identity of this process: its rank and the total rank
// count, known a priori at start-up.
type Ranks struct {
	Rank int
	Size int
}

// env pairs consulted when rank/size are not given explicitly, in order.
var rankEnv = [][2]string{
	{"ATOMAP_RANK", "ATOMAP_RANKS"},
	{"SLURM_PROCID", "SLURM_NTASKS"},
	{"OMPI_COMM_WORLD_RANK", "OMPI_COMM_WORLD_SIZE"},
}

// ResolveRanks determines this worker's rank and the total rank count.
// Explicit values (size > 0) win; otherwise the scheduler environment is
// consulted via lookup; a plain single-process run gets {0, 1}.
func ResolveRanks(rank, size int, lookup func(string) (string, bool)) (Ranks, error) {
	if size > 0 {
		if rank < 0 || rank >= size {
			return Ranks{}, fmt.Errorf("rank %d out of range for %d ranks", rank, size)
		}
		return Ranks{Rank: rank, Size: size}, nil
	}
	for _, pair := range rankEnv {
		rv, okR := lookup(pair[0])
		sv, okS := lookup(pair[1])
		if !okR || !okS {
			continue
		}
		r, err := strconv.Atoi(rv)
		if err != nil {
			return Ranks{}, fmt.Errorf("parsing %s=%q: %w", pair[0], rv, err)
		}
		s, err := strconv.Atoi(sv)
		if err != nil {
			return Ranks{}, fmt.Errorf("parsing %s=%q: %w", pair[1], sv, err)
		}
		if s <= 0 || r < 0 || r >= s {
			return Ranks{}, fmt.Errorf("inconsistent scheduler ranks: rank %d of %d", r, s)
		}
		return Ranks{Rank: r, Size: s}, nil
	}
	return Ranks{Rank: 0, Size: 1}, nil
}
