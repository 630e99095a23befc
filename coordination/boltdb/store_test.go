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
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/configserver/coordination"
	"github.com/tochemey/configserver/coordination/storetest"
	gerrors "github.com/tochemey/configserver/errors"
)

func newTestStore(t *testing.T) coordination.Store {
	t.Helper()
	store, err := NewStore(&Config{Path: filepath.Join(t.TempDir(), "coordination.db"), NoSync: true})
	require.NoError(t, err)
	return store
}

func TestStoreContract(t *testing.T) {
	defer goleak.VerifyNone(t)
	storetest.Run(t, newTestStore)
}

func TestNewStore(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		store, err := NewStore(nil)
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("reopen keeps data and versions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "coordination.db")
		ctx := context.Background()

		store, err := NewStore(&Config{Path: path})
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, "/a", []byte("1")))
		before, err := store.Get(ctx, "/a")
		require.NoError(t, err)
		require.NoError(t, store.Close())

		store, err = NewStore(&Config{Path: path})
		require.NoError(t, err)
		defer store.Close()

		after, err := store.Get(ctx, "/a")
		require.NoError(t, err)
		assert.Equal(t, before.Version, after.Version)

		require.NoError(t, store.Set(ctx, "/b", []byte("2")))
		next, err := store.Get(ctx, "/b")
		require.NoError(t, err)
		assert.Greater(t, next.Version, after.Version)
	})
}

func TestConfig(t *testing.T) {
	config := &Config{}
	config.Sanitize()
	require.NotEmpty(t, config.Path)
	require.Equal(t, DefaultOpenTimeout, config.OpenTimeout)
	require.Equal(t, DefaultWatchBuffer, config.WatchBuffer)
	require.NoError(t, config.Validate())

	require.Error(t, (&Config{}).Validate())
	require.Error(t, (&Config{Path: "x", OpenTimeout: time.Second}).Validate())
}

func TestStoreClosed(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()
	_, err := store.Get(ctx, "/a")
	require.ErrorIs(t, err, gerrors.ErrStoreClosed)
	require.ErrorIs(t, store.Set(ctx, "/a", nil), gerrors.ErrStoreClosed)
	_, err = store.Lock(ctx, "/a", time.Second)
	require.ErrorIs(t, err, gerrors.ErrStoreClosed)
	_, err = store.Watch(ctx, "/a")
	require.ErrorIs(t, err, gerrors.ErrStoreClosed)
}

func TestInvalidPath(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	_, err := store.Get(ctx, "relative")
	require.Error(t, err)
	require.Error(t, store.Set(ctx, "/trailing/", []byte("x")))
}

func TestLockCanceledContext(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	held, err := store.Lock(context.Background(), "/locks/a", time.Second)
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Lock(ctx, "/locks/a", time.Second)
	require.Error(t, err)
	require.NotErrorIs(t, err, gerrors.ErrLockTimeout)
}

func TestCloseStopsWatchers(t *testing.T) {
	store := newTestStore(t)
	events, err := store.Watch(context.Background(), "/a")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, ok := <-events
	require.False(t, ok)
}
