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

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/deployment"
	"github.com/tochemey/configserver/flags"
	"github.com/tochemey/configserver/session"
)

func buildFlagsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Read and write cluster feature flags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "set <id> <json value>",
		Short:   "Set a flag",
		Example: `  configserver flags set inactive-maintenance-jobs '["FileDistributionMaintainer"]'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := new(structpb.Value)
			if err := protojson.Unmarshal([]byte(args[1]), value); err != nil {
				return fmt.Errorf("flag value must be JSON: %w", err)
			}
			return withEnvironment(opts.configFile, func(env *environment) error {
				return flags.NewRepository(env.store).Set(cmd.Context(), flags.ID(args[0]), value)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Print a flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnvironment(opts.configFile, func(env *environment) error {
				value, ok, err := flags.NewRepository(env.store).Get(cmd.Context(), flags.ID(args[0]))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("flag %s is not set", args[0])
				}
				return printValue(cmd.OutOrStdout(), value)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every flag set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(opts.configFile, func(env *environment) error {
				values, err := flags.NewRepository(env.store).List(cmd.Context())
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(values))
				for id := range values {
					ids = append(ids, string(id))
				}
				slices.Sort(ids)
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=", id)
					if err := printValue(cmd.OutOrStdout(), values[flags.ID(id)]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Unset a flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnvironment(opts.configFile, func(env *environment) error {
				return flags.NewRepository(env.store).Delete(cmd.Context(), flags.ID(args[0]))
			})
		},
	})
	return cmd
}

func printValue(out io.Writer, value *structpb.Value) error {
	data, err := protojson.Marshal(value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

type deployOptions struct {
	tenant      string
	application string
	instance    string
	packageFile string
	hosts       []string
	force       bool
}

func (o deployOptions) applicationID() application.ID {
	return application.NewID(o.tenant, o.application, o.instance)
}

func buildDeployCommand(opts *rootOptions) *cobra.Command {
	deploy := new(deployOptions)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create, prepare and activate a session of an application package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, err := os.ReadFile(deploy.packageFile)
			if err != nil {
				return fmt.Errorf("failed to read application package: %w", err)
			}
			return withEnvironment(opts.configFile, func(env *environment) error {
				return deployPackage(cmd.Context(), cmd.OutOrStdout(), env, deploy, content)
			}, session.WithModelBuilder(hostsModelBuilder{hosts: deploy.hosts}))
		},
	}

	cmd.Flags().StringVar(&deploy.tenant, "tenant", "", "tenant of the application")
	cmd.Flags().StringVar(&deploy.application, "application", "", "application name")
	cmd.Flags().StringVar(&deploy.instance, "instance", application.DefaultInstance, "application instance")
	cmd.Flags().StringVarP(&deploy.packageFile, "package", "p", "", "application package file")
	cmd.Flags().StringSliceVar(&deploy.hosts, "hosts", nil, "hosts to allocate the application to")
	cmd.Flags().BoolVar(&deploy.force, "force", false, "activate even if the active session changed since the session was created")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("application")
	_ = cmd.MarkFlagRequired("package")
	return cmd
}

func deployPackage(ctx context.Context, out io.Writer, env *environment, deploy *deployOptions, content []byte) error {
	id := deploy.applicationID()
	if err := id.Validate(); err != nil {
		return err
	}

	ref, err := env.directory.Write(content)
	if err != nil {
		return err
	}

	owner, err := env.tenants.Create(ctx, deploy.tenant)
	if err != nil {
		return err
	}

	created, err := owner.Sessions.CreateSession(ctx, session.CreateParams{
		ApplicationID:    id,
		PackageReference: ref,
		Version:          env.config.SystemVersion,
	}, time.Now())
	if err != nil {
		return err
	}

	generation, err := deployment.Unprepared(owner, created.ID, deploymentOptions(env, deploy.force)...).Activate(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Session %d of %s activated. Config generation %d\n", created.ID, id, generation)
	return err
}

func buildActivateCommand(opts *rootOptions) *cobra.Command {
	var (
		tenantName string
		sessionID  int64
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Prepare and activate an existing session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(opts.configFile, func(env *environment) error {
				owner, err := env.tenants.Get(cmd.Context(), tenantName)
				if err != nil {
					return err
				}
				current, err := owner.Sessions.Get(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				create := deployment.Prepared
				if current.Status == session.StatusNew {
					create = deployment.Unprepared
				}
				generation, err := create(owner, sessionID, deploymentOptions(env, force)...).Activate(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Session %d activated. Config generation %d\n", sessionID, generation)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "tenant of the session")
	cmd.Flags().Int64Var(&sessionID, "session", 0, "session id")
	cmd.Flags().BoolVar(&force, "force", false, "activate even if the active session changed since the session was created")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func buildRestartCommand(opts *rootOptions) *cobra.Command {
	var (
		tenantName string
		app        string
		instance   string
		hosts      []string
	)
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the hosts of the active session of an application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(opts.configFile, func(env *environment) error {
				owner, err := env.tenants.Get(cmd.Context(), tenantName)
				if err != nil {
					return err
				}
				id := application.NewID(tenantName, app, instance)
				active, ok, err := owner.Sessions.ActiveSession(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s has no active session", id)
				}

				filter := deployment.AllHosts()
				if len(hosts) > 0 {
					filter = deployment.Hostnames(hosts...)
				}
				if err := deployment.Prepared(owner, active.ID, deploymentOptions(env, false)...).Restart(cmd.Context(), filter); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Restarted %s of %s\n", filter, id)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "tenant of the application")
	cmd.Flags().StringVar(&app, "application", "", "application name")
	cmd.Flags().StringVar(&instance, "instance", application.DefaultInstance, "application instance")
	cmd.Flags().StringSliceVar(&hosts, "hosts", nil, "hosts to restart, all when empty")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("application")
	return cmd
}

func buildSessionsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect sessions",
	}

	var tenantName string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the sessions of a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(opts.configFile, func(env *environment) error {
				owner, err := env.tenants.Get(cmd.Context(), tenantName)
				if err != nil {
					return err
				}
				sessions, err := owner.Sessions.List(cmd.Context())
				if err != nil {
					return err
				}
				return printSessions(cmd.OutOrStdout(), sessions)
			})
		},
	}
	list.Flags().StringVar(&tenantName, "tenant", "", "tenant of the sessions")
	_ = list.MarkFlagRequired("tenant")

	cmd.AddCommand(list)
	return cmd
}

func printSessions(out io.Writer, sessions []*session.Session) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATUS\tAPPLICATION\tVERSION\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			strconv.FormatInt(s.ID, 10), s.Status, s.ApplicationID, s.Version, s.CreateTime.UTC().Format(time.RFC3339))
	}
	return writer.Flush()
}

func deploymentOptions(env *environment, force bool) []deployment.Option {
	return []deployment.Option{
		deployment.WithForce(force),
		deployment.WithTimeout(env.config.Deployment.Timeout),
		deployment.WithHostProvisioner(deployment.NewStoreProvisioner(env.store)),
		deployment.WithLogger(env.logger),
	}
}

func withEnvironment(configFile string, fn func(env *environment) error, sessionOpts ...session.Option) (err error) {
	env, err := openEnvironment(configFile, sessionOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := env.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(env)
}

// hostsModelBuilder allocates every package to a fixed set of hosts
type hostsModelBuilder struct {
	hosts []string
}

func (b hostsModelBuilder) Build(ctx context.Context, pkg session.ApplicationPackage, opts session.BuildOptions) (session.Model, error) {
	model, err := session.PackageModelBuilder{}.Build(ctx, pkg, opts)
	if err != nil {
		return nil, err
	}
	return &session.StaticModel{HostNames: b.hosts, Files: model.FileReferences()}, nil
}
