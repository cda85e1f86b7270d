package bench

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Result is the outcome of one mode.
type Result struct {
	Mode      string        `json:"mode"`
	Threads   int           `json:"threads"`
	Objects   int           `json:"objects"`
	Rounds    int           `json:"rounds"`
	Ops       uint64        `json:"ops"`
	Failures  uint64        `json:"failures"`
	Wall      time.Duration `json:"wall_ns"`
	OpsPerSec float64       `json:"ops_per_sec"`
}

// String formats the result as one report line.
func (r Result) String() string {
	return fmt.Sprintf("%-10s threads=%d objects=%d rounds=%d ops=%d failures=%d wall=%s ops/s=%.0f",
		r.Mode, r.Threads, r.Objects, r.Rounds, r.Ops, r.Failures, r.Wall.Round(time.Microsecond), r.OpsPerSec)
}

// counters accumulate member totals for one mode.
type counters struct {
	ops      atomic.Uint64
	failures atomic.Uint64
}

func (c *counters) add(ops, failures int) {
	if ops > 0 {
		c.ops.Add(uint64(ops))
	}
	if failures > 0 {
		c.failures.Add(uint64(failures))
	}
}

func (c *counters) result(mode string, opts Options, wall time.Duration) Result {
	res := Result{
		Mode:     mode,
		Threads:  opts.Threads,
		Objects:  opts.Objects,
		Rounds:   opts.Rounds,
		Ops:      c.ops.Load(),
		Failures: c.failures.Load(),
		Wall:     wall,
	}
	if wall > 0 {
		res.OpsPerSec = float64(res.Ops) / wall.Seconds()
	}
	return res
}
