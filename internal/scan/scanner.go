// Package scan produces vulnerability findings for a device. Only a
// simulator is provided; findings are random within fixed bands.
package scan

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spec-kit/shield-service/internal/domain"
)

// Scanner inspects a device and reports its findings.
type Scanner interface {
	Scan(ctx context.Context, device *domain.Device) (domain.Findings, error)
}

// Band is an inclusive range of finding counts.
type Band struct {
	Min int
	Max int
}

// Bands bounds each severity produced by the simulator.
var Bands = struct {
	Critical, High, Medium, Low, Info Band
}{
	Critical: Band{0, 2},
	High:     Band{0, 5},
	Medium:   Band{2, 10},
	Low:      Band{5, 15},
	Info:     Band{10, 25},
}

// Simulator draws findings uniformly from Bands.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator returns a simulator seeded from the clock.
func NewSimulator() *Simulator {
	seed := uint64(time.Now().UnixNano())
	return NewSeededSimulator(seed, seed>>1)
}

// NewSeededSimulator returns a deterministic simulator.
func NewSeededSimulator(seed1, seed2 uint64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (s *Simulator) Scan(ctx context.Context, _ *domain.Device) (domain.Findings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Findings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Findings{
		Critical: s.draw(Bands.Critical),
		High:     s.draw(Bands.High),
		Medium:   s.draw(Bands.Medium),
		Low:      s.draw(Bands.Low),
		Info:     s.draw(Bands.Info),
	}, nil
}

func (s *Simulator) draw(b Band) int {
	return b.Min + s.rng.IntN(b.Max-b.Min+1)
}

// Static always reports the same findings.
type Static domain.Findings

func (f Static) Scan(ctx context.Context, _ *domain.Device) (domain.Findings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Findings{}, err
	}
	return domain.Findings(f), nil
}
