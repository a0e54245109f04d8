package booking

import (
	"math/rand"
	"time"

	"github.com/example/ecocommute/internal/models"
)

// Decision is the driver's answer and how long it took to arrive.
type Decision struct {
	Approved bool
	Delay    time.Duration
}

// Decider stands in for the driver-side approval backend. A real
// integration replaces the simulated implementation while keeping the
// contract: pending immediately, one asynchronous terminal decision.
type Decider interface {
	Decide(b models.Booking) Decision
}

// SimulatedDecider draws the response delay uniformly from
// [DelayMin, DelayMax) and approves with probability ApprovalRate.
// Both parameters model a backend's decision latency and driver
// response rate, not behavior to reproduce exactly.
type SimulatedDecider struct {
	ApprovalRate float64
	DelayMin     time.Duration
	DelayMax     time.Duration

	// Rand returns a uniform value in [0,1); defaults to math/rand.
	Rand func() float64
}

func NewSimulatedDecider(approvalRate float64, delayMin, delayMax time.Duration) *SimulatedDecider {
	return &SimulatedDecider{
		ApprovalRate: approvalRate,
		DelayMin:     delayMin,
		DelayMax:     delayMax,
		Rand:         rand.Float64,
	}
}

func (d *SimulatedDecider) Decide(b models.Booking) Decision {
	r := d.Rand
	if r == nil {
		r = rand.Float64
	}
	span := d.DelayMax - d.DelayMin
	if span < 0 {
		span = 0
	}
	return Decision{
		Approved: r() < d.ApprovalRate,
		Delay:    d.DelayMin + time.Duration(r()*float64(span)),
	}
}

// FixedDecider returns a fixed outcome after a fixed delay. Keeps tests
// deterministic and fast.
type FixedDecider struct {
	Approved bool
	Delay    time.Duration
}

func (d FixedDecider) Decide(b models.Booking) Decision {
	return Decision{Approved: d.Approved, Delay: d.Delay}
}
