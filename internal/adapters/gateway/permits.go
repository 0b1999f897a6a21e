package gateway

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gaitlab/paddock/pkg/metrics"
)

// PermitPool caps the number of outbound AI calls in flight across every
// gateway client in the process. One sync call or one async submit+poll
// sequence holds exactly one permit end to end.
type PermitPool struct {
	sem *semaphore.Weighted
}

// NewPermitPool creates a pool of n permits. Values below 1 fall back to a
// single permit.
func NewPermitPool(n int) *PermitPool {
	if n < 1 {
		n = 1
	}
	return &PermitPool{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a permit is available or ctx expires. Waiting time
// counts against the caller's total budget.
func (p *PermitPool) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	metrics.RecordPermitWait(float64(time.Since(start).Milliseconds()))
	return nil
}

// Release returns a permit to the pool.
func (p *PermitPool) Release() {
	p.sem.Release(1)
}
