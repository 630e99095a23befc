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

package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/internal/testutil"
	"github.com/tochemey/configserver/log"
)

func TestID(t *testing.T) {
	id := NewID("music", "player", "")
	assert.Equal(t, "music:player:default", id.SerializedForm())
	assert.Equal(t, "music.player", id.ShortString())
	assert.Equal(t, "music.player.beta", NewID("music", "player", "beta").ShortString())

	parsed, err := ParseID("music:player:default")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, invalid := range []string{"music", "music:player", "music:player:default:x", "music::default", "mu/sic:player:default"} {
		_, err := ParseID(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	repository := NewRepository("music", store, log.DiscardLogger)
	id := NewID("music", "player", "")

	assert.Equal(t, "/config/v2/tenants/music/applications/music:player:default", repository.Path(id))
	assert.Equal(t, "/config/v2/tenants/music/locks/music:player:default", repository.LockPath(id))

	_, ok, err := repository.ActiveSessionOf(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repository.RequireActiveSessionOf(ctx, id)
	require.ErrorIs(t, err, gerrors.ErrApplicationNotFound)

	require.NoError(t, repository.CreateApplication(ctx, id))
	require.NoError(t, repository.CreateApplication(ctx, id))

	exists, err := repository.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	ids, err := repository.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ID{id}, ids)

	active, err := repository.ActiveApplications(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, store.Commit(ctx, repository.PutTransaction(id, 3)))
	sessionID, err := repository.RequireActiveSessionOf(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sessionID)

	active, err = repository.ActiveApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ID{id}, active)

	require.NoError(t, store.Commit(ctx, repository.DeleteTransaction(id)))
	exists, err = repository.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepositoryIgnoresInvalidNodes(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	repository := NewRepository("music", store, log.DiscardLogger)

	require.NoError(t, store.Set(ctx, coordination.Join(TenantPath("music"), "applications", "garbage"), nil))
	ids, err := repository.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRepositoryLock(t *testing.T) {
	ctx := context.Background()
	repository := NewRepository("music", testutil.NewStore(t), log.DiscardLogger)
	id := NewID("music", "player", "")

	lock, err := repository.Lock(ctx, id)
	require.NoError(t, err)

	_, err = repository.LockWithin(ctx, id, 50*time.Millisecond)
	require.ErrorIs(t, err, gerrors.ErrLockTimeout)

	require.NoError(t, lock.Release(ctx))
}

func TestAwaitActiveSession(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	repository := NewRepository("music", store, log.DiscardLogger)
	id := NewID("music", "player", "")

	t.Run("already active", func(t *testing.T) {
		require.NoError(t, store.Commit(ctx, repository.PutTransaction(id, 1)))
		require.NoError(t, repository.AwaitActiveSession(ctx, id, 1))
	})

	t.Run("activated later", func(t *testing.T) {
		errc := make(chan error, 1)
		go func() { errc <- repository.AwaitActiveSession(ctx, id, 2) }()

		time.Sleep(50 * time.Millisecond)
		require.NoError(t, store.Commit(ctx, repository.PutTransaction(id, 2)))

		select {
		case err := <-errc:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "activation was not observed")
		}
	})

	t.Run("budget exhausted", func(t *testing.T) {
		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		err := repository.AwaitActiveSession(waitCtx, id, 9)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
