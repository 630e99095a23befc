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

// Package errorschain collects the errors of a sequence of steps, such as
// the shutdown of several components, into a single error.
package errorschain

import "go.uber.org/multierr"

// Chain accumulates errors in insertion order
type Chain struct {
	returnFirst bool
	errs        []error
}

// Option configures a Chain
type Option func(*Chain)

// ReturnFirst makes the chain stop at the first error. Steps added through
// AddStep after a failure are not run.
func ReturnFirst() Option {
	return func(c *Chain) { c.returnFirst = true }
}

// ReturnAll makes the chain run every step and combine every error
func ReturnAll() Option {
	return func(c *Chain) { c.returnFirst = false }
}

// New creates an empty chain. ReturnAll is the default.
func New(opts ...Option) *Chain {
	chain := &Chain{}
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// AddError records err. Nil errors are ignored.
func (c *Chain) AddError(err error) *Chain {
	if err != nil {
		c.errs = append(c.errs, err)
	}
	return c
}

// AddErrors records every non-nil error of errs
func (c *Chain) AddErrors(errs ...error) *Chain {
	for _, err := range errs {
		c.AddError(err)
	}
	return c
}

// AddStep runs fn and records its error, unless the chain returns
// the first error and already holds one.
func (c *Chain) AddStep(fn func() error) *Chain {
	if c.returnFirst && len(c.errs) > 0 {
		return c
	}
	return c.AddError(fn())
}

// Error returns the first error with ReturnFirst, otherwise the combination
// of every recorded error. It returns nil when nothing failed.
func (c *Chain) Error() error {
	if len(c.errs) == 0 {
		return nil
	}
	if c.returnFirst {
		return c.errs[0]
	}
	return multierr.Combine(c.errs...)
}
