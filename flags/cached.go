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

package flags

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/configserver/internal/ticker"
	"github.com/tochemey/configserver/log"
)

// DefaultRefreshInterval is the default refresh period of a Cached source
const DefaultRefreshInterval = 30 * time.Second

// Cached is a Source serving a snapshot of the stored flags.
// The snapshot is replaced on every successful refresh; a failed refresh keeps
// the previous one.
type Cached struct {
	repository *Repository
	interval   time.Duration
	logger     log.Logger

	snapshot *atomic.Pointer[map[ID]*structpb.Value]
	ticker   *ticker.Ticker
	stop     chan struct{}
	done     chan struct{}

	// guards the lifecycle fields above
	mu      sync.Mutex
	started bool
}

var _ Source = (*Cached)(nil)

// CachedOption configures a Cached source
type CachedOption func(*Cached)

// WithRefreshInterval sets the refresh period
func WithRefreshInterval(interval time.Duration) CachedOption {
	return func(c *Cached) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) CachedOption {
	return func(c *Cached) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCached creates a Cached source over repository
func NewCached(repository *Repository, opts ...CachedOption) *Cached {
	cached := &Cached{
		repository: repository,
		interval:   DefaultRefreshInterval,
		logger:     log.DefaultLogger,
		snapshot:   atomic.NewPointer(&map[ID]*structpb.Value{}),
	}
	for _, opt := range opts {
		opt(cached)
	}
	return cached
}

// Value implements Source
func (c *Cached) Value(id ID) (*structpb.Value, bool) {
	values := *c.snapshot.Load()
	v, ok := values[id]
	return v, ok
}

// Refresh reloads the snapshot from the store
func (c *Cached) Refresh(ctx context.Context) error {
	values, err := c.repository.List(ctx)
	if err != nil && len(values) == 0 {
		return err
	}
	c.snapshot.Store(&values)
	return err
}

// Start loads the flags once and keeps refreshing them until Stop
func (c *Cached) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warnf("failed to load flags: %v", err)
	}

	c.ticker = ticker.New(c.interval)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.ticker.Start()

	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.ticker.Ticks:
				if err := c.Refresh(context.WithoutCancel(ctx)); err != nil {
					c.logger.Warnf("failed to refresh flags: %v", err)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop stops refreshing. The last snapshot stays readable.
func (c *Cached) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	close(c.stop)
	<-c.done
	c.ticker.Stop()
}
