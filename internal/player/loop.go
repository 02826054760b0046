package player

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Reporter receives what a running game tells the outside world. Calls are
// made from the loop goroutine.
type Reporter interface {
	LinesCleared(n int)
	Spectrum(heights []int)
	GameOver()
}

// Autopilot is polled once per frame on the loop goroutine and may return
// inputs to apply before gravity runs.
type Autopilot func(g *Game) []Input

type Loop struct {
	game      *Game
	timing    Timing
	rep       Reporter
	autopilot Autopilot

	inputs  chan Input
	garbage chan int
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
}

func NewLoop(g *Game, timing Timing, rep Reporter, autopilot Autopilot) *Loop {
	if timing.Frame <= 0 {
		timing.Frame = DefaultTiming().Frame
	}
	return &Loop{
		game:      g,
		timing:    timing,
		rep:       rep,
		autopilot: autopilot,
		inputs:    make(chan Input, 32),
		garbage:   make(chan int, 8),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Input queues a key press. It reports false if the queue is full or the
// loop has finished.
func (l *Loop) Input(in Input) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inputs <- in:
		return true
	default:
		return false
	}
}

// AddGarbage hands penalty lines to the loop goroutine.
func (l *Loop) AddGarbage(n int) {
	if n <= 0 {
		return
	}
	select {
	case l.garbage <- n:
	case <-l.done:
	}
}

// Stop ends the loop without reporting game over; used when another player
// has already been announced as the winner.
func (l *Loop) Stop() { l.once.Do(func() { close(l.stop) }) }

func (l *Loop) Done() <-chan struct{} { return l.done }

// Run drives the game until it is over, Stop is called or ctx is cancelled.
// Only the ctx case returns an error.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ticker := time.NewTicker(l.timing.Frame)
	defer ticker.Stop()

	last := time.Now()
	var lastSpectrum []int
	var lastSent time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-l.stop:
			return nil

		case in := <-l.inputs:
			if l.emit(l.game.Apply(in)) {
				return nil
			}

		case n := <-l.garbage:
			l.game.AddGarbage(n)

		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			if l.autopilot != nil {
				for _, in := range l.autopilot(l.game) {
					if l.emit(l.game.Apply(in)) {
						return nil
					}
				}
			}
			if l.emit(l.game.Advance(dt)) {
				return nil
			}

			if now.Sub(lastSent) >= l.timing.SpectrumInterval {
				lastSent = now
				if s := l.game.Spectrum(); !slices.Equal(s, lastSpectrum) {
					lastSpectrum = s
					l.rep.Spectrum(s)
				}
			}
		}
	}
}

// emit forwards reports and says whether the game just ended.
func (l *Loop) emit(reports []Report) bool {
	for _, r := range reports {
		switch r.Kind {
		case ReportLinesCleared:
			l.rep.LinesCleared(r.Lines)
		case ReportGameOver:
			l.rep.GameOver()
			return true
		}
	}
	return false
}
