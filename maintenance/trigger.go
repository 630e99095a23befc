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

package maintenance

import (
	"time"

	"go.uber.org/atomic"
)

// staggeredTrigger fires first after an initial delay, then every interval.
// The next fire time is derived from the previous scheduled one so the
// schedule keeps a fixed rate.
type staggeredTrigger struct {
	initialDelay time.Duration
	interval     time.Duration
	scheduled    *atomic.Bool
}

func newStaggeredTrigger(initialDelay, interval time.Duration) *staggeredTrigger {
	return &staggeredTrigger{
		initialDelay: initialDelay,
		interval:     interval,
		scheduled:    atomic.NewBool(false),
	}
}

// NextFireTime returns the next fire time in unix nanoseconds
func (t *staggeredTrigger) NextFireTime(prev int64) (int64, error) {
	if t.scheduled.CompareAndSwap(false, true) {
		return prev + t.initialDelay.Nanoseconds(), nil
	}
	return prev + t.interval.Nanoseconds(), nil
}

// Description returns the trigger description
func (t *staggeredTrigger) Description() string {
	return "StaggeredTrigger::" + t.initialDelay.String() + "::" + t.interval.String()
}
