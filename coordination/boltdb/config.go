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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tochemey/configserver/internal/validation"
)

const (
	// DefaultOpenTimeout bounds the wait for the file lock of the database
	DefaultOpenTimeout = 5 * time.Second
	// DefaultWatchBuffer is the number of events a slow watcher can lag behind
	DefaultWatchBuffer = 256

	defaultFolder = ".configserver"
	defaultFile   = "coordination.db"
)

// Config defines the bbolt-backed store settings
type Config struct {
	// Path is the database file. Defaults to ~/.configserver/coordination.db
	Path string `yaml:"path"`
	// OpenTimeout bounds the wait for the database file lock
	OpenTimeout time.Duration `yaml:"openTimeout"`
	// WatchBuffer is the per-watcher event buffer
	WatchBuffer int `yaml:"watchBuffer"`
	// NoSync skips fsync after each commit. Only meant for tests.
	NoSync bool `yaml:"noSync"`
}

var _ validation.Validator = (*Config)(nil)

// Sanitize fills the defaults
func (c *Config) Sanitize() {
	if c.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Path = filepath.Join(home, defaultFolder, defaultFile)
		}
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = DefaultOpenTimeout
	}
	if c.WatchBuffer <= 0 {
		c.WatchBuffer = DefaultWatchBuffer
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Path", c.Path)).
		AddValidator(validation.NewPositiveDurationValidator("OpenTimeout", c.OpenTimeout)).
		AddAssertion(c.WatchBuffer > 0, fmt.Sprintf("WatchBuffer must be positive, but was %d", c.WatchBuffer)).
		Validate()
}
