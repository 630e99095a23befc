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
	"time"

	"github.com/tochemey/configserver/internal/metric"
	"github.com/tochemey/configserver/log"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a Deployment.
	Apply(*Deployment)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Deployment)

// Apply applies the option
func (f OptionFunc) Apply(d *Deployment) {
	f(d)
}

// WithValidation turns package validation on or off. It is on by default.
func WithValidation(validate bool) Option {
	return OptionFunc(func(d *Deployment) {
		d.validate = validate
	})
}

// WithBootstrap marks deployments made by the config server itself at startup
func WithBootstrap(bootstrap bool) Option {
	return OptionFunc(func(d *Deployment) {
		d.bootstrap = bootstrap
	})
}

// WithForce activates the session even when the active session changed after
// it was created. It never allows activating a session older than the active one.
func WithForce(force bool) Option {
	return OptionFunc(func(d *Deployment) {
		d.force = force
	})
}

// WithTimeout sets the total time allowed for the deployment
func WithTimeout(timeout time.Duration) Option {
	return OptionFunc(func(d *Deployment) {
		if timeout > 0 {
			d.timeout = timeout
		}
	})
}

// WithClock sets the clock the timeout budget is measured with
func WithClock(clock Clock) Option {
	return OptionFunc(func(d *Deployment) {
		if clock != nil {
			d.clock = clock
		}
	})
}

// WithHostProvisioner sets the host provisioner taking part in activation
func WithHostProvisioner(provisioner HostProvisioner) Option {
	return OptionFunc(func(d *Deployment) {
		d.provisioner = provisioner
	})
}

// WithMetrics sets the deployment instruments
func WithMetrics(metrics *metric.DeploymentMetric) Option {
	return OptionFunc(func(d *Deployment) {
		d.metrics = metrics
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(d *Deployment) {
		if logger != nil {
			d.logger = logger
		}
	})
}
