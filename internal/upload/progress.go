package upload

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultInterval is used when NewProgress gets a non-positive interval.
const DefaultInterval = 100 * time.Millisecond

// Progress is a timed producer of a finite progress sequence that ends
// at 100. It can run once.
type Progress struct {
	step     int
	interval time.Duration
	delay    time.Duration
	started  atomic.Bool
}

func NewProgress(step int, interval, redirectDelay time.Duration) *Progress {
	if step <= 0 {
		step = 1
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Progress{step: step, interval: interval, delay: redirectDelay}
}

// Steps returns the values a run emits, in order.
func (p *Progress) Steps() []int {
	out := make([]int, 0, 100/p.step+1)
	for v := p.step; ; v += p.step {
		if v >= 100 {
			return append(out, 100)
		}
		out = append(out, v)
	}
}

// Start emits one value per interval on the returned channel, closes it
// after 100 and then, once the redirect delay has passed, calls
// onComplete. Cancelling ctx stops the run without calling onComplete.
func (p *Progress) Start(ctx context.Context, onComplete func()) (<-chan int, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	out := make(chan int)
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for _, v := range p.Steps() {
			select {
			case <-ctx.Done():
				close(out)
				return
			case <-ticker.C:
			}
			select {
			case <-ctx.Done():
				close(out)
				return
			case out <- v:
			}
		}
		close(out)

		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if onComplete != nil {
				onComplete()
			}
		}
	}()
	return out, nil
}
