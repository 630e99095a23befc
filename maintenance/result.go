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

import "fmt"

// Outcome is what a tick did
type Outcome int

const (
	// Ok means the job ran and succeeded
	Ok Outcome = iota
	// Inactive means the job is disabled cluster wide and did not run
	Inactive
	// Busy means the previous tick of this Maintainer was still running
	Busy
	// LockTimeout means another process holds the job lock
	LockTimeout
	// Unsuccessful means the job ran and reported a failure
	Unsuccessful
	// RunFailed means the job could not run or returned an error
	RunFailed
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case Inactive:
		return "inactive"
	case Busy:
		return "busy"
	case LockTimeout:
		return "lock timeout"
	case Unsuccessful:
		return "unsuccessful"
	case RunFailed:
		return "run failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// TickResult is the result of one tick
type TickResult struct {
	Outcome Outcome
	// Err is the cause of a RunFailed outcome
	Err error
}

// Succeeded reports whether the job ran and succeeded
func (r TickResult) Succeeded() bool {
	return r.Outcome == Ok
}

// String implements fmt.Stringer
func (r TickResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	}
	return r.Outcome.String()
}
