// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package ticker provides a restartable ticker that drops ticks for slow receivers.
package ticker

import (
	"sync"
	"time"
)

// Ticker delivers ticks on Ticks every interval while started.
// A tick is dropped when nobody is receiving, so a slow consumer never
// sees a backlog of stale ticks.
type Ticker struct {
	Ticks chan time.Time

	interval time.Duration
	mu       sync.Mutex
	stop     chan struct{}
	stopped  chan struct{}
}

// New creates a stopped Ticker. It panics when interval is not positive.
func New(interval time.Duration) *Ticker {
	if interval <= 0 {
		panic("ticker: interval must be greater than zero")
	}
	return &Ticker{
		Ticks:    make(chan time.Time),
		interval: interval,
	}
}

// Start starts ticking. Calling Start on a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.stopped = make(chan struct{})
	go t.loop(t.stop, t.stopped)
}

// Stop stops the ticker and waits for its goroutine to exit.
// No tick is delivered after Stop returns until Start is called again.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.stopped
	t.stop, t.stopped = nil, nil
}

// Ticking reports whether the ticker is started
func (t *Ticker) Ticking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Ticker) loop(stop, stopped chan struct{}) {
	defer close(stopped)
	clock := time.NewTicker(t.interval)
	defer clock.Stop()
	for {
		select {
		case tc := <-clock.C:
			select {
			case t.Ticks <- tc:
			case <-stop:
				return
			default:
			}
		case <-stop:
			return
		}
	}
}
