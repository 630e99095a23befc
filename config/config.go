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

// Package config loads the configuration file of a config server.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tochemey/configserver/coordination"
	"github.com/tochemey/configserver/coordination/boltdb"
	"github.com/tochemey/configserver/coordination/etcd"
	"github.com/tochemey/configserver/deployment"
	"github.com/tochemey/configserver/flags"
	"github.com/tochemey/configserver/internal/validation"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/maintenance"
)

const (
	// BackendBoltDB keeps the coordination state in a local bbolt file
	BackendBoltDB = "boltdb"
	// BackendEtcd keeps the coordination state in an etcd cluster
	BackendEtcd = "etcd"

	// DefaultHTTPAddress serves file references and metrics
	DefaultHTTPAddress = "0.0.0.0:19071"
	// DefaultFileReferencesDir is where application packages are kept
	DefaultFileReferencesDir = "/var/lib/configserver/filedistribution"
)

// ErrUnknownBackend is returned for a store backend other than etcd and boltdb
var ErrUnknownBackend = errors.New("unknown store backend")

// Config is the configuration of a config server
type Config struct {
	// Hostname identifies this server. Defaults to the OS hostname.
	Hostname string `yaml:"hostname"`
	// ClusterHostnames is the ordered list of config servers. The order drives
	// the staggering of maintenance jobs.
	ClusterHostnames []string `yaml:"clusterHostnames"`
	// HTTPAddress is the listen address of the file reference and metrics endpoints
	HTTPAddress string `yaml:"httpAddress"`
	// SystemVersion is the platform version this server runs
	SystemVersion string `yaml:"systemVersion"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"logLevel"`
	// MetricsEnabled exposes /metrics
	MetricsEnabled bool `yaml:"metricsEnabled"`

	Store       StoreConfig       `yaml:"store"`
	Deployment  DeploymentConfig  `yaml:"deployment"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Flags       FlagsConfig       `yaml:"flags"`
}

// StoreConfig selects and configures the coordination store
type StoreConfig struct {
	Backend string         `yaml:"backend"`
	Etcd    *etcd.Config   `yaml:"etcd"`
	BoltDB  *boltdb.Config `yaml:"boltdb"`
}

// DeploymentConfig tunes deployments
type DeploymentConfig struct {
	// Timeout is the budget of a prepare and activate
	Timeout time.Duration `yaml:"timeout"`
}

// MaintenanceConfig tunes the maintenance jobs
type MaintenanceConfig struct {
	ApplicationPackageInterval time.Duration `yaml:"applicationPackageInterval"`
	FileDistributionInterval   time.Duration `yaml:"fileDistributionInterval"`
	OwnershipConfirmerInterval time.Duration `yaml:"ownershipConfirmerInterval"`
	VersionStatusInterval      time.Duration `yaml:"versionStatusInterval"`
	// FileReferencesDir is the local file reference directory
	FileReferencesDir string `yaml:"fileReferencesDir"`
	// KeepUnusedFileReferences is how long unused packages are kept
	KeepUnusedFileReferences time.Duration `yaml:"keepUnusedFileReferences"`
	// ConfirmOwnership turns the application ownership confirmer on
	ConfirmOwnership bool `yaml:"confirmOwnership"`
}

// FlagsConfig tunes the flag cache
type FlagsConfig struct {
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

var _ validation.Validator = (*Config)(nil)

// Load reads, sanitizes and validates the YAML file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, sanitizes and validates a YAML configuration
func Parse(data []byte) (*Config, error) {
	config := new(Config)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Sanitize fills the defaults
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Hostname) == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.Hostname = hostname
		}
	}
	if len(c.ClusterHostnames) == 0 && c.Hostname != "" {
		c.ClusterHostnames = []string{c.Hostname}
	}
	if c.HTTPAddress == "" {
		c.HTTPAddress = DefaultHTTPAddress
	}
	if c.LogLevel == "" {
		c.LogLevel = log.InfoLevel.String()
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendBoltDB
	}
	switch c.Store.Backend {
	case BackendBoltDB:
		if c.Store.BoltDB == nil {
			c.Store.BoltDB = new(boltdb.Config)
		}
		c.Store.BoltDB.Sanitize()
	case BackendEtcd:
		if c.Store.Etcd == nil {
			c.Store.Etcd = new(etcd.Config)
		}
		c.Store.Etcd.Sanitize()
	}

	if c.Deployment.Timeout <= 0 {
		c.Deployment.Timeout = deployment.DefaultTimeout
	}

	defaults := maintenance.DefaultIntervals()
	if c.Maintenance.ApplicationPackageInterval <= 0 {
		c.Maintenance.ApplicationPackageInterval = defaults.ApplicationPackage
	}
	if c.Maintenance.FileDistributionInterval <= 0 {
		c.Maintenance.FileDistributionInterval = defaults.FileDistribution
	}
	if c.Maintenance.OwnershipConfirmerInterval <= 0 {
		c.Maintenance.OwnershipConfirmerInterval = defaults.OwnershipConfirmer
	}
	if c.Maintenance.VersionStatusInterval <= 0 {
		c.Maintenance.VersionStatusInterval = defaults.VersionStatus
	}
	if c.Maintenance.FileReferencesDir == "" {
		c.Maintenance.FileReferencesDir = DefaultFileReferencesDir
	}
	if c.Maintenance.KeepUnusedFileReferences <= 0 {
		c.Maintenance.KeepUnusedFileReferences = maintenance.DefaultKeepUnusedFileReferences
	}

	if c.Flags.RefreshInterval <= 0 {
		c.Flags.RefreshInterval = flags.DefaultRefreshInterval
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("Hostname", c.Hostname)).
		AddAssertion(slices.Contains(c.ClusterHostnames, c.Hostname),
			fmt.Sprintf("ClusterHostnames must contain the hostname %s", c.Hostname)).
		AddValidator(validation.NewTCPAddressValidator(c.HTTPAddress)).
		AddAssertion(log.ParseLevel(c.LogLevel) != log.InvalidLevel, fmt.Sprintf("invalid log level %q", c.LogLevel)).
		AddValidator(validation.NewPositiveDurationValidator("Deployment.Timeout", c.Deployment.Timeout)).
		AddValidator(validation.NewPositiveDurationValidator("Maintenance.ApplicationPackageInterval", c.Maintenance.ApplicationPackageInterval)).
		AddValidator(validation.NewPositiveDurationValidator("Maintenance.FileDistributionInterval", c.Maintenance.FileDistributionInterval)).
		AddValidator(validation.NewPositiveDurationValidator("Maintenance.OwnershipConfirmerInterval", c.Maintenance.OwnershipConfirmerInterval)).
		AddValidator(validation.NewPositiveDurationValidator("Maintenance.VersionStatusInterval", c.Maintenance.VersionStatusInterval)).
		AddValidator(validation.NewEmptyStringValidator("Maintenance.FileReferencesDir", c.Maintenance.FileReferencesDir)).
		AddValidator(validation.NewPositiveDurationValidator("Flags.RefreshInterval", c.Flags.RefreshInterval))

	switch c.Store.Backend {
	case BackendBoltDB:
		chain.AddValidator(c.Store.BoltDB)
	case BackendEtcd:
		chain.AddValidator(c.Store.Etcd)
	default:
		chain.AddValidator(validation.NewBooleanValidator(false, fmt.Sprintf("%s: %q", ErrUnknownBackend, c.Store.Backend)))
	}
	return chain.Validate()
}

// Logger returns a logger at the configured level
func (c *Config) Logger() log.Logger {
	level := log.ParseLevel(c.LogLevel)
	if level == log.InvalidLevel {
		level = log.InfoLevel
	}
	return log.NewZap(level, os.Stdout)
}

// Intervals returns the maintenance job intervals
func (c *Config) Intervals() maintenance.Intervals {
	return maintenance.Intervals{
		ApplicationPackage: c.Maintenance.ApplicationPackageInterval,
		FileDistribution:   c.Maintenance.FileDistributionInterval,
		OwnershipConfirmer: c.Maintenance.OwnershipConfirmerInterval,
		VersionStatus:      c.Maintenance.VersionStatusInterval,
	}
}

// OpenStore connects to the configured coordination store
func (c *Config) OpenStore() (coordination.Store, error) {
	switch c.Store.Backend {
	case BackendBoltDB:
		return boltdb.NewStore(c.Store.BoltDB)
	case BackendEtcd:
		return etcd.NewStore(c.Store.Etcd)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Store.Backend)
	}
}
