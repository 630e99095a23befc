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

package filedistribution

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/log"
)

func TestFileReference(t *testing.T) {
	ref := NewFileReference([]byte("services.xml"))
	assert.Len(t, ref.String(), referenceLength)
	assert.Equal(t, ref, NewFileReference([]byte("services.xml")))
	assert.NotEqual(t, ref, NewFileReference([]byte("hosts.xml")))
	assert.True(t, ref.Matches([]byte("services.xml")))

	parsed, err := ParseFileReference(ref.String())
	require.NoError(t, err)
	assert.Equal(t, ref, parsed)

	for _, invalid := range []string{"", "../etc", "ABCDEF", ref.String() + "0"} {
		_, err := ParseFileReference(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestDirectory(t *testing.T) {
	directory, err := NewDirectory(filepath.Join(t.TempDir(), "filedistribution"))
	require.NoError(t, err)

	content := []byte("<services version=\"1.0\"/>")
	ref, err := directory.Write(content)
	require.NoError(t, err)

	has, err := directory.Has(ref)
	require.NoError(t, err)
	assert.True(t, has)

	read, err := directory.Read(ref)
	require.NoError(t, err)
	assert.Equal(t, content, read)

	again, err := directory.Write(content)
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	missing := NewFileReference([]byte("missing"))
	has, err = directory.Has(missing)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = directory.Read(missing)
	require.ErrorIs(t, err, gerrors.ErrFileReferenceNotFound)

	// junk entries are not references
	require.NoError(t, os.MkdirAll(filepath.Join(directory.Root(), "tmp"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(directory.Root(), "README"), nil, 0o600))

	refs, err := directory.List()
	require.NoError(t, err)
	assert.Equal(t, []FileReference{ref}, refs.ToSlice())
}

func TestDirectoryReadDetectsCorruption(t *testing.T) {
	directory, err := NewDirectory(t.TempDir())
	require.NoError(t, err)

	ref, err := directory.Write([]byte("original"))
	require.NoError(t, err)

	other, err := directory.Write([]byte("tampered"))
	require.NoError(t, err)
	require.NoError(t, os.Rename(directory.Path(other), directory.Path(ref)))

	_, err = directory.Read(ref)
	require.ErrorContains(t, err, "corrupt")
}

func TestDirectoryDeleteUnused(t *testing.T) {
	directory, err := NewDirectory(t.TempDir())
	require.NoError(t, err)

	used, err := directory.Write([]byte("used"))
	require.NoError(t, err)
	oldUnused, err := directory.Write([]byte("old unused"))
	require.NoError(t, err)
	recentUnused, err := directory.Write([]byte("recent unused"))
	require.NoError(t, err)

	now := time.Now()
	old := now.Add(-15 * 24 * time.Hour)
	for _, ref := range []FileReference{used, oldUnused} {
		require.NoError(t, os.Chtimes(filepath.Join(directory.Root(), ref.String()), old, old))
	}

	deleted, err := directory.DeleteUnused(mapset.NewSet(used), 14*24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, []FileReference{oldUnused}, deleted)

	refs, err := directory.List()
	require.NoError(t, err)
	assert.True(t, refs.Equal(mapset.NewThreadUnsafeSet(used, recentUnused)))
}

func TestHandler(t *testing.T) {
	directory, err := NewDirectory(t.TempDir())
	require.NoError(t, err)
	ref, err := directory.Write([]byte("package"))
	require.NoError(t, err)

	handler := NewHandler(directory, log.DiscardLogger)
	mux := http.NewServeMux()
	mux.Handle(handler.Pattern(), handler)
	server := httptest.NewServer(mux)
	defer server.Close()

	cases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"found", http.MethodGet, handlerPrefix + ref.String(), http.StatusOK},
		{"missing", http.MethodGet, handlerPrefix + NewFileReference([]byte("x")).String(), http.StatusNotFound},
		{"invalid", http.MethodGet, handlerPrefix + "nope", http.StatusBadRequest},
		{"method", http.MethodPost, handlerPrefix + ref.String(), http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, server.URL+tc.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestPeerDownloader(t *testing.T) {
	ctx := context.Background()

	source, err := NewDirectory(t.TempDir())
	require.NoError(t, err)
	content := []byte("application package")
	ref, err := source.Write(content)
	require.NoError(t, err)

	peer := startPeer(t, NewHandler(source, log.DiscardLogger))
	// a peer that is down is skipped
	down := net.JoinHostPort("127.0.0.1", strconv.Itoa(dynaport.Get(1)[0]))

	target, err := NewDirectory(t.TempDir())
	require.NoError(t, err)
	downloader := NewPeerDownloader(target, []string{down, peer},
		WithAttempts(2),
		WithHTTPClient(&http.Client{Timeout: time.Second}),
		WithDownloaderLogger(log.DiscardLogger))

	path, ok := downloader.GetFile(ctx, ref)
	require.True(t, ok)
	assert.Equal(t, target.Path(ref), path)

	read, err := target.Read(ref)
	require.NoError(t, err)
	assert.Equal(t, content, read)

	// already present: no peer needed
	offline := NewPeerDownloader(target, nil, WithDownloaderLogger(log.DiscardLogger))
	_, ok = offline.GetFile(ctx, ref)
	assert.True(t, ok)

	_, ok = downloader.GetFile(ctx, NewFileReference([]byte("unknown")))
	assert.False(t, ok)
}

func TestPeerDownloaderRejectsMismatchedContent(t *testing.T) {
	lying := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("something else"))
	})
	server := httptest.NewServer(lying)
	defer server.Close()

	target, err := NewDirectory(t.TempDir())
	require.NoError(t, err)
	downloader := NewPeerDownloader(target, []string{server.Listener.Addr().String()},
		WithAttempts(1), WithDownloaderLogger(log.DiscardLogger))

	ref := NewFileReference([]byte("expected"))
	_, ok := downloader.GetFile(context.Background(), ref)
	assert.False(t, ok)

	has, err := target.Has(ref)
	require.NoError(t, err)
	assert.False(t, has)
}

func startPeer(t *testing.T, handler *Handler) string {
	t.Helper()
	address := net.JoinHostPort("127.0.0.1", strconv.Itoa(dynaport.Get(1)[0]))
	mux := http.NewServeMux()
	mux.Handle(handler.Pattern(), handler)
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: time.Second}

	listener, err := net.Listen("tcp", address)
	require.NoError(t, err)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("peer stopped: %v", err)
		}
	}()
	t.Cleanup(func() { _ = server.Close() })
	return address
}
