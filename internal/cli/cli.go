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

// Package cli implements the configserver command line.
//
//	configserver run -c config.yaml
//	configserver flags set|get|list|delete
//	configserver deploy --tenant t --application a --package services.xml [--force]
//	configserver activate --tenant t --session 3 [--force]
//	configserver restart --tenant t --application a [--hosts h1,h2]
//	configserver sessions list --tenant t
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/tochemey/configserver/config"
	"github.com/tochemey/configserver/coordination"
	"github.com/tochemey/configserver/filedistribution"
	"github.com/tochemey/configserver/flags"
	"github.com/tochemey/configserver/internal/errorschain"
	"github.com/tochemey/configserver/internal/metric"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/maintenance"
	"github.com/tochemey/configserver/session"
	"github.com/tochemey/configserver/tenant"
)

const (
	// DefaultConfigFile is read when --config is not given
	DefaultConfigFile = "configserver.yaml"

	shutdownTimeout = 30 * time.Second
)

// Version is set at build time
var Version = "dev"

type rootOptions struct {
	configFile string
}

// BuildCLI returns the root command
func BuildCLI() *cobra.Command {
	opts := new(rootOptions)
	rootCmd := &cobra.Command{
		Use:           "configserver",
		Short:         "Config server control plane",
		Long:          "Deploys application packages through sessions and runs the config server maintenance jobs.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", DefaultConfigFile, "config file path")

	rootCmd.AddCommand(buildRunCommand(opts))
	rootCmd.AddCommand(buildFlagsCommand(opts))
	rootCmd.AddCommand(buildDeployCommand(opts))
	rootCmd.AddCommand(buildActivateCommand(opts))
	rootCmd.AddCommand(buildRestartCommand(opts))
	rootCmd.AddCommand(buildSessionsCommand(opts))
	return rootCmd
}

// environment is what every command works on
type environment struct {
	config    *config.Config
	logger    log.Logger
	store     coordination.Store
	directory *filedistribution.Directory
	tenants   *tenant.Repository
}

func openEnvironment(configFile string, sessionOpts ...session.Option) (*environment, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()

	directory, err := filedistribution.NewDirectory(cfg.Maintenance.FileReferencesDir)
	if err != nil {
		return nil, err
	}

	store, err := cfg.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open the %s store: %w", cfg.Store.Backend, err)
	}

	sessionOpts = append([]session.Option{session.WithPackageSource(directory)}, sessionOpts...)
	return &environment{
		config:    cfg,
		logger:    logger,
		store:     store,
		directory: directory,
		tenants:   tenant.NewRepository(store, tenant.WithLogger(logger), tenant.WithSessionOptions(sessionOpts...)),
	}, nil
}

func (e *environment) Close() error {
	return errorschain.New(errorschain.ReturnAll()).
		AddStep(e.store.Close).
		AddStep(e.logger.Flush).
		Error()
}

func buildRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the config server",
		Long:  "Serve file references and metrics, and run the maintenance jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := openEnvironment(opts.configFile)
			if err != nil {
				return err
			}
			return runServer(ctx, env)
		},
	}
}

// runServer runs until ctx is done or the HTTP server fails, then shuts every
// component down in the reverse order of their start.
func runServer(ctx context.Context, env *environment) (err error) {
	cfg := env.config
	logger := env.logger
	shutdown := errorschain.New(errorschain.ReturnAll())
	defer func() {
		err = multierr.Append(err, shutdown.AddStep(env.Close).Error())
	}()

	provider := metric.New()
	var exporter *metric.Exporter
	if cfg.MetricsEnabled {
		exporter, err = metric.NewPrometheusExporter()
		if err != nil {
			return err
		}
		provider = metric.New(metric.WithMeterProvider(exporter.MeterProvider()))
	}
	jobMetric, err := metric.NewJobMetric(provider.Meter())
	if err != nil {
		return err
	}
	versionMetric, err := metric.NewVersionMetric(provider.Meter())
	if err != nil {
		return err
	}

	cachedFlags := flags.NewCached(flags.NewRepository(env.store),
		flags.WithRefreshInterval(cfg.Flags.RefreshInterval),
		flags.WithLogger(logger))
	cachedFlags.Start(ctx)

	peers, err := peersOf(cfg)
	if err != nil {
		cachedFlags.Stop()
		return err
	}

	var issues maintenance.OwnershipIssues
	if cfg.Maintenance.ConfirmOwnership {
		issues = maintenance.NewStoreIssueTracker(env.store)
	}

	jobs, err := maintenance.New(maintenance.Dependencies{
		Store:                    env.store,
		Tenants:                  env.tenants,
		Flags:                    cachedFlags,
		Directory:                env.directory,
		Downloader:               filedistribution.NewPeerDownloader(env.directory, peers, filedistribution.WithDownloaderLogger(logger)),
		Issues:                   issues,
		SystemVersion:            cfg.SystemVersion,
		Hostname:                 cfg.Hostname,
		ClusterHostnames:         cfg.ClusterHostnames,
		Intervals:                cfg.Intervals(),
		KeepUnusedFileReferences: cfg.Maintenance.KeepUnusedFileReferences,
		JobMetrics:               jobMetric,
		VersionMetric:            versionMetric,
		Logger:                   logger,
	})
	if err != nil {
		cachedFlags.Stop()
		return err
	}

	mux := http.NewServeMux()
	handler := filedistribution.NewHandler(env.directory, logger)
	mux.Handle(handler.Pattern(), handler)
	if exporter != nil {
		mux.Handle("/metrics", exporter.Handler())
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		cachedFlags.Stop()
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddress, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if err := jobs.Start(ctx); err != nil {
		_ = server.Close()
		cachedFlags.Stop()
		return err
	}
	logger.Infof("Config server %s started on %s", cfg.Hostname, cfg.HTTPAddress)

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	logger.Infof("Config server %s stopping", cfg.Hostname)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	shutdown.AddStep(jobs.Close).
		AddStep(func() error { return server.Shutdown(stopCtx) }).
		AddStep(func() error {
			cachedFlags.Stop()
			return nil
		})
	if exporter != nil {
		shutdown.AddStep(func() error { return exporter.Shutdown(stopCtx) })
	}
	return err
}

// peersOf returns the address of every other config server of the cluster.
// Peers listen on the same port as this server.
func peersOf(cfg *config.Config) ([]string, error) {
	_, port, err := net.SplitHostPort(cfg.HTTPAddress)
	if err != nil {
		return nil, err
	}
	peers := make([]string, 0, len(cfg.ClusterHostnames))
	for _, host := range cfg.ClusterHostnames {
		if host == cfg.Hostname || slices.Contains(peers, net.JoinHostPort(host, port)) {
			continue
		}
		peers = append(peers, net.JoinHostPort(host, port))
	}
	return peers, nil
}

// Execute runs the command line and exits non zero on failure
func Execute() {
	if err := BuildCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
