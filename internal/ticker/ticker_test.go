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

package ticker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestTicker(t *testing.T) {
	t.Run("delivers ticks until stopped", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ticker := New(10 * time.Millisecond)
		assert.False(t, ticker.Ticking())

		ticker.Start()
		ticker.Start()
		assert.True(t, ticker.Ticking())

		select {
		case <-ticker.Ticks:
		case <-time.After(time.Second):
			require.FailNow(t, "no tick received")
		}

		ticker.Stop()
		ticker.Stop()
		assert.False(t, ticker.Ticking())

		select {
		case <-ticker.Ticks:
			require.FailNow(t, "tick received after stop")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("restarts", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		ticker := New(5 * time.Millisecond)
		ticker.Start()
		ticker.Stop()
		ticker.Start()
		<-ticker.Ticks
		ticker.Stop()
	})

	t.Run("rejects non positive interval", func(t *testing.T) {
		assert.Panics(t, func() { New(0) })
	})
}
