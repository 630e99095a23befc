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

package etcd

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/tochemey/configserver/internal/validation"
)

const (
	defaultNamespace   = "/configserver"
	defaultDialTimeout = 5 * time.Second
	defaultTimeout     = 5 * time.Second
	defaultLockTTL     = 60 * time.Second
)

// Config defines the etcd-backed store settings
type Config struct {
	// Context is the base context of the etcd client
	Context context.Context `yaml:"-"`
	// Endpoints are the etcd client URLs
	Endpoints []string `yaml:"endpoints"`
	// Namespace prefixes every key written by the store
	Namespace string `yaml:"namespace"`
	// DialTimeout bounds the initial connection
	DialTimeout time.Duration `yaml:"dialTimeout"`
	// Timeout bounds every single read or write
	Timeout time.Duration `yaml:"timeout"`
	// LockTTL is the lease TTL of held locks. A crashed holder loses its lock after it.
	LockTTL time.Duration `yaml:"lockTTL"`
	// TLS enables TLS when set
	TLS *tls.Config `yaml:"-"`
	// Username for etcd authentication
	Username string `yaml:"username"`
	// Password for etcd authentication
	Password string `yaml:"password"`
}

var _ validation.Validator = (*Config)(nil)

// Sanitize fills the defaults
func (c *Config) Sanitize() {
	if c.Context == nil {
		c.Context = context.Background()
	}
	if strings.TrimSpace(c.Namespace) == "" {
		c.Namespace = defaultNamespace
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaultLockTTL
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddAssertion(len(c.Endpoints) > 0, "Endpoints must not be empty")
	for _, endpoint := range c.Endpoints {
		chain.AddValidator(validation.NewEmptyStringValidator("Endpoint", endpoint))
	}
	return chain.
		AddValidator(validation.NewEmptyStringValidator("Namespace", c.Namespace)).
		AddValidator(validation.NewPositiveDurationValidator("DialTimeout", c.DialTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("Timeout", c.Timeout)).
		AddAssertion(c.LockTTL >= time.Second, "LockTTL must be at least one second").
		Validate()
}
