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

// Package storetest holds the behavior every coordination.Store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
)

// Factory returns a ready store. The store is closed by the suite.
type Factory func(t *testing.T) coordination.Store

// Run exercises the coordination.Store contract against the stores created by factory
func Run(t *testing.T, factory Factory) {
	t.Run("get set and versions", func(t *testing.T) {
		store, root := open(t, factory)
		ctx := context.Background()
		path := coordination.Join(root, "a")

		_, err := store.Get(ctx, path)
		require.ErrorIs(t, err, gerrors.ErrNodeNotFound)

		require.NoError(t, store.Set(ctx, path, []byte("1")))
		first, err := store.Get(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), first.Data)
		assert.Equal(t, path, first.Path)
		assert.Positive(t, first.Version)

		require.NoError(t, store.Set(ctx, path, []byte("2")))
		second, err := store.Get(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), second.Data)
		assert.Greater(t, second.Version, first.Version)
	})

	t.Run("empty nodes", func(t *testing.T) {
		store, root := open(t, factory)
		ctx := context.Background()
		path := coordination.Join(root, "empty")

		require.NoError(t, store.Set(ctx, path, nil))
		node, err := store.Get(ctx, path)
		require.NoError(t, err)
		assert.Empty(t, node.Data)

		exists, err := store.Exists(ctx, path)
		require.NoError(t, err)
		assert.True(t, exists)

		err = store.Commit(ctx, coordination.NewTransaction().Absent(path).Put(path, []byte("x")))
		require.ErrorIs(t, err, gerrors.ErrTransactionConflict)
	})

	t.Run("exists children and delete", func(t *testing.T) {
		store, root := open(t, factory)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, coordination.Join(root, "s", "2", "status"), []byte("NEW")))
		require.NoError(t, store.Set(ctx, coordination.Join(root, "s", "10", "status"), []byte("NEW")))
		require.NoError(t, store.Set(ctx, coordination.Join(root, "s", "1"), []byte("x")))
		require.NoError(t, store.Set(ctx, coordination.Join(root, "sx"), []byte("y")))

		exists, err := store.Exists(ctx, coordination.Join(root, "s", "2"))
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.Exists(ctx, coordination.Join(root, "s", "3"))
		require.NoError(t, err)
		assert.False(t, exists)

		children, err := store.Children(ctx, coordination.Join(root, "s"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "10", "2"}, children)

		children, err = store.Children(ctx, coordination.Join(root, "missing"))
		require.NoError(t, err)
		assert.Empty(t, children)

		require.NoError(t, store.Delete(ctx, coordination.Join(root, "s")))
		exists, err = store.Exists(ctx, coordination.Join(root, "s", "2", "status"))
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = store.Exists(ctx, coordination.Join(root, "sx"))
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("commit applies every write", func(t *testing.T) {
		store, root := open(t, factory)
		ctx := context.Background()
		a := coordination.Join(root, "a")
		b := coordination.Join(root, "b")
		c := coordination.Join(root, "c")

		require.NoError(t, store.Set(ctx, a, []byte("1")))
		require.NoError(t, store.Set(ctx, c, []byte("3")))
		node, err := store.Get(ctx, a)
		require.NoError(t, err)

		txn := coordination.NewTransaction().
			VersionEquals(a, node.Version).
			Absent(b).
			Put(a, []byte("10")).
			Put(b, []byte("20")).
			Delete(c)
		require.NoError(t, store.Commit(ctx, txn))

		assertData(t, store, a, "10")
		assertData(t, store, b, "20")
		_, err = store.Get(ctx, c)
		require.ErrorIs(t, err, gerrors.ErrNodeNotFound)
	})

	t.Run("commit is all or nothing", func(t *testing.T) {
		store, root := open(t, factory)
		ctx := context.Background()
		a := coordination.Join(root, "a")
		b := coordination.Join(root, "b")

		require.NoError(t, store.Set(ctx, a, []byte("1")))
		node, err := store.Get(ctx, a)
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, a, []byte("2")))

		stale := coordination.NewTransaction().
			VersionEquals(a, node.Version).
			Put(a, []byte("3")).
			Put(b, []byte("3"))
		require.ErrorIs(t, store.Commit(ctx, stale), gerrors.ErrTransactionConflict)
		assertData(t, store, a, "2")
		_, err = store.Get(ctx, b)
		require.ErrorIs(t, err, gerrors.ErrNodeNotFound)

		notAbsent := coordination.NewTransaction().Absent(a).Put(b, []byte("3"))
		require.ErrorIs(t, store.Commit(ctx, notAbsent), gerrors.ErrTransactionConflict)
		_, err = store.Get(ctx, b)
		require.ErrorIs(t, err, gerrors.ErrNodeNotFound)
	})

	t.Run("locks are exclusive", func(t *testing.T) {
		store, root := open(t, factory)
		ctx := context.Background()
		path := coordination.Join(root, "locks", "job")

		lock, err := store.Lock(ctx, path, time.Second)
		require.NoError(t, err)
		assert.Equal(t, path, lock.Path())

		_, err = store.Lock(ctx, path, 200*time.Millisecond)
		require.ErrorIs(t, err, gerrors.ErrLockTimeout)

		require.NoError(t, lock.Release(ctx))
		require.NoError(t, lock.Release(ctx))

		again, err := store.Lock(ctx, path, time.Second)
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("commit requires the lock to be held", func(t *testing.T) {
		store, root := open(t, factory)
		ctx := context.Background()
		a := coordination.Join(root, "a")

		lock, err := store.Lock(ctx, coordination.Join(root, "locks", "app"), time.Second)
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, coordination.NewTransaction().LockHeld(lock).Put(a, []byte("1"))))
		require.NoError(t, lock.Release(ctx))

		err = store.Commit(ctx, coordination.NewTransaction().LockHeld(lock).Put(a, []byte("2")))
		require.ErrorIs(t, err, gerrors.ErrTransactionConflict)
		assertData(t, store, a, "1")
	})

	t.Run("watch streams changes below the path", func(t *testing.T) {
		store, root := open(t, factory)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		watched := coordination.Join(root, "sessions", "1")
		events, err := store.Watch(ctx, watched)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, coordination.Join(root, "sessions", "10", "status"), []byte("NEW")))
		require.NoError(t, store.Set(ctx, coordination.Join(watched, "status"), []byte("ACTIVATE")))
		require.NoError(t, store.Delete(ctx, coordination.Join(watched, "status")))

		put := receive(t, events)
		assert.Equal(t, coordination.EventPut, put.Type)
		assert.Equal(t, coordination.Join(watched, "status"), put.Path)
		assert.Equal(t, []byte("ACTIVATE"), put.Data)

		deleted := receive(t, events)
		assert.Equal(t, coordination.EventDelete, deleted.Type)
		assert.Equal(t, coordination.Join(watched, "status"), deleted.Path)

		cancel()
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-events:
				return !ok
			default:
				return false
			}
		}, 5*time.Second, 10*time.Millisecond)
	})
}

func open(t *testing.T, factory Factory) (coordination.Store, string) {
	t.Helper()
	store := factory(t)
	t.Cleanup(func() { _ = store.Close() })
	return store, coordination.Join("storetest", uuid.NewString())
}

func assertData(t *testing.T, store coordination.Store, path, want string) {
	t.Helper()
	node, err := store.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, want, string(node.Data))
}

func receive(t *testing.T, events <-chan coordination.Event) coordination.Event {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "watch channel closed")
		return event
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no watch event received")
		return coordination.Event{}
	}
}
