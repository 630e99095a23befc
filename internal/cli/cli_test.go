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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/tochemey/configserver/config"
	"github.com/tochemey/configserver/deployment"
	gerrors "github.com/tochemey/configserver/errors"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "configserver.yaml")
	content := fmt.Sprintf(`hostname: cfg1
systemVersion: 8.2.0
logLevel: error
store:
  backend: boltdb
  boltdb:
    path: %s
    noSync: true
maintenance:
  fileReferencesDir: %s
%s`, filepath.Join(dir, "coordination.db"), filepath.Join(dir, "filedistribution"), extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, configFile string, args ...string) (string, error) {
	t.Helper()
	cmd := BuildCLI()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", configFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()
	assert.Equal(t, "configserver", cmd.Use)

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "flags", "deploy", "activate", "restart", "sessions"}, names)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, DefaultConfigFile, configFlag.DefValue)
}

func TestFlagsCommand(t *testing.T) {
	configFile := writeConfig(t, "")

	_, err := execute(t, configFile, "flags", "get", "configserver-distribute-application-package")
	require.Error(t, err)

	_, err = execute(t, configFile, "flags", "set", "configserver-distribute-application-package", "true")
	require.NoError(t, err)
	_, err = execute(t, configFile, "flags", "set", "inactive-maintenance-jobs", `["FileDistributionMaintainer"]`)
	require.NoError(t, err)
	_, err = execute(t, configFile, "flags", "set", "inactive-maintenance-jobs", `[not json`)
	require.Error(t, err)

	out, err := execute(t, configFile, "flags", "get", "configserver-distribute-application-package")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, configFile, "flags", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "configserver-distribute-application-package=true", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "inactive-maintenance-jobs="))
	assert.Contains(t, lines[1], "FileDistributionMaintainer")

	_, err = execute(t, configFile, "flags", "delete", "configserver-distribute-application-package")
	require.NoError(t, err)
	_, err = execute(t, configFile, "flags", "get", "configserver-distribute-application-package")
	require.Error(t, err)
}

func TestDeployCommands(t *testing.T) {
	configFile := writeConfig(t, "")
	packageFile := filepath.Join(t.TempDir(), "services.xml")
	require.NoError(t, os.WriteFile(packageFile, []byte("<services/>"), 0o600))

	out, err := execute(t, configFile, "deploy", "--tenant", "music", "--application", "player",
		"--package", packageFile, "--hosts", "host1,host2")
	require.NoError(t, err)
	assert.Equal(t, "Session 1 of music:player:default activated. Config generation 1\n", out)

	require.NoError(t, os.WriteFile(packageFile, []byte("<services version='2'/>"), 0o600))
	out, err = execute(t, configFile, "deploy", "--tenant", "music", "--application", "player",
		"--package", packageFile, "--hosts", "host1,host2")
	require.NoError(t, err)
	assert.Equal(t, "Session 2 of music:player:default activated. Config generation 2\n", out)

	out, err = execute(t, configFile, "sessions", "list", "--tenant", "music")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "DEACTIVATE")
	assert.Contains(t, lines[2], "ACTIVATE")
	assert.Contains(t, lines[2], "8.2.0")

	out, err = execute(t, configFile, "restart", "--tenant", "music", "--application", "player", "--hosts", "host2")
	require.NoError(t, err)
	assert.Equal(t, "Restarted hosts [host2] of music:player:default\n", out)

	_, err = execute(t, configFile, "restart", "--tenant", "music", "--application", "player", "--hosts", "host9")
	require.Error(t, err)

	_, err = execute(t, configFile, "activate", "--tenant", "music", "--session", "1", "--force")
	require.ErrorIs(t, err, gerrors.ErrActivationConflict)

	_, err = execute(t, configFile, "activate", "--tenant", "music", "--session", "7")
	require.ErrorIs(t, err, gerrors.ErrSessionNotFound)

	_, err = execute(t, configFile, "sessions", "list", "--tenant", "books")
	require.ErrorIs(t, err, gerrors.ErrTenantNotFound)

	_, err = execute(t, configFile, "deploy", "--tenant", "music", "--application", "player")
	require.Error(t, err)

	cfg, err := config.Load(configFile)
	require.NoError(t, err)
	store, err := cfg.OpenStore()
	require.NoError(t, err)
	defer store.Close()
	generation, err := deployment.NewStoreProvisioner(store).RestartGeneration(context.Background(), "host2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, generation)
}

func TestRunServer(t *testing.T) {
	port := dynaport.Get(1)[0]
	configFile := writeConfig(t, fmt.Sprintf("httpAddress: 127.0.0.1:%d\nmetricsEnabled: true\n", port))

	env, err := openEnvironment(configFile)
	require.NoError(t, err)
	ref, err := env.directory.Write([]byte("<services/>"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, env) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/filedistribution/v1/" + ref.String())
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(body) == "<services/>"
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(35 * time.Second):
		t.Fatal("server did not stop")
	}

	// the store is closed by the shutdown
	_, err = env.store.Exists(context.Background(), "/")
	require.Error(t, err)
	assert.False(t, errors.Is(err, gerrors.ErrNodeNotFound))
}

func TestPeersOf(t *testing.T) {
	peers, err := peersOf(&config.Config{
		Hostname:         "cfg2",
		ClusterHostnames: []string{"cfg1", "cfg2", "cfg3", "cfg1"},
		HTTPAddress:      "0.0.0.0:19071",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cfg1:19071", "cfg3:19071"}, peers)

	_, err = peersOf(&config.Config{HTTPAddress: "nowhere"})
	require.Error(t, err)
}
