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

package deployment

import (
	"context"
	"fmt"
	"time"

	gerrors "github.com/tochemey/configserver/errors"
)

// Clock returns the current time
type Clock func() time.Time

// TimeoutBudget tracks the time left of an operation with a fixed total timeout
type TimeoutBudget struct {
	clock   Clock
	start   time.Time
	timeout time.Duration
}

// NewTimeoutBudget starts a budget of timeout at the current clock time
func NewTimeoutBudget(clock Clock, timeout time.Duration) *TimeoutBudget {
	if clock == nil {
		clock = time.Now
	}
	return &TimeoutBudget{clock: clock, start: clock(), timeout: timeout}
}

// Timeout returns the total budget
func (b *TimeoutBudget) Timeout() time.Duration {
	return b.timeout
}

// Elapsed returns the time spent so far
func (b *TimeoutBudget) Elapsed() time.Duration {
	return b.clock().Sub(b.start)
}

// TimeLeft returns what remains of the budget, never negative
func (b *TimeoutBudget) TimeLeft() time.Duration {
	left := b.timeout - b.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// HasTimeLeft reports whether the budget is not exhausted
func (b *TimeoutBudget) HasTimeLeft() bool {
	return b.TimeLeft() > 0
}

// Check returns a TimeoutError naming op when the budget is exhausted
func (b *TimeoutBudget) Check(op string) error {
	if b.HasTimeLeft() {
		return nil
	}
	return gerrors.NewTimeoutError(op, fmt.Errorf("timeout budget of %s exhausted after %s", b.timeout, b.Elapsed()))
}

// WithDeadline returns a context bounded by the time left
func (b *TimeoutBudget) WithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.TimeLeft())
}
