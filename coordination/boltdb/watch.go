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

package boltdb

import (
	"context"
	"sync"

	"github.com/tochemey/configserver/coordination"
)

type watcher struct {
	path   string
	events chan coordination.Event
	done   chan struct{}
	once   sync.Once
}

// stop must be called with the store mutex held
func (w *watcher) stop() {
	w.once.Do(func() {
		close(w.events)
		close(w.done)
	})
}

// Watch streams changes of path and its descendants until ctx is done.
// A watcher that falls more than WatchBuffer events behind misses events.
func (s *Store) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if err := s.ready(ctx, path); err != nil {
		return nil, err
	}

	w := &watcher{
		path:   path,
		events: make(chan coordination.Event, s.config.WatchBuffer),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-w.done:
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[w]; ok {
			delete(s.watchers, w)
			w.stop()
		}
	}()

	return w.events, nil
}

func (s *Store) publish(events []coordination.Event) {
	if len(events) == 0 {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for w := range s.watchers {
		for _, event := range events {
			if !coordination.Covers(w.path, event.Path) {
				continue
			}
			select {
			case w.events <- event:
			default:
			}
		}
	}
}
