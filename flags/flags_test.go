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

package flags

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/configserver/internal/testutil"
	"github.com/tochemey/configserver/log"
)

func TestBooleanFlag(t *testing.T) {
	flag := NewBooleanFlag(DistributeApplicationPackage, true)
	assert.Equal(t, DistributeApplicationPackage, flag.ID())

	assert.True(t, flag.Value(Static{}))
	assert.False(t, flag.Value(Static{DistributeApplicationPackage: structpb.NewBoolValue(false)}))
	// wrong type falls back to the default
	assert.True(t, flag.Value(Static{DistributeApplicationPackage: structpb.NewStringValue("false")}))
}

func TestListFlag(t *testing.T) {
	flag := NewListFlag(InactiveMaintenanceJobs)
	assert.Empty(t, flag.Value(Static{}))

	list, err := structpb.NewList([]any{"FileDistributionMaintainer", 1, "VersionStatusUpdater"})
	require.NoError(t, err)
	values := flag.Value(Static{InactiveMaintenanceJobs: structpb.NewListValue(list)})
	assert.Equal(t, []string{"FileDistributionMaintainer", "VersionStatusUpdater"}, values)

	assert.Empty(t, flag.Value(Static{InactiveMaintenanceJobs: structpb.NewBoolValue(true)}))
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	repository := NewRepository(store)

	_, ok, err := repository.Get(ctx, DistributeApplicationPackage)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repository.Set(ctx, DistributeApplicationPackage, structpb.NewBoolValue(true)))
	value, ok, err := repository.Get(ctx, DistributeApplicationPackage)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.GetBoolValue())

	node, err := store.Get(ctx, "/flags/v1/configserver-distribute-application-package")
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(node.Data))

	require.NoError(t, store.Set(ctx, Path("broken"), []byte("{not json")))
	values, err := repository.List(ctx)
	require.Error(t, err)
	assert.Len(t, values, 1)

	require.NoError(t, repository.Delete(ctx, DistributeApplicationPackage))
	_, ok, err = repository.Get(ctx, DistributeApplicationPackage)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCached(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	store := testutil.NewStore(t)
	repository := NewRepository(store)
	require.NoError(t, repository.Set(ctx, DistributeApplicationPackage, structpb.NewBoolValue(true)))

	cached := NewCached(repository, WithRefreshInterval(10*time.Millisecond), WithLogger(log.DiscardLogger))
	flag := NewBooleanFlag(DistributeApplicationPackage, false)
	assert.False(t, flag.Value(cached))

	cached.Start(ctx)
	cached.Start(ctx)
	assert.True(t, flag.Value(cached))

	require.NoError(t, repository.Set(ctx, DistributeApplicationPackage, structpb.NewBoolValue(false)))
	require.Eventually(t, func() bool { return !flag.Value(cached) }, 2*time.Second, 10*time.Millisecond)

	cached.Stop()
	cached.Stop()

	// the last snapshot stays readable
	require.NoError(t, repository.Set(ctx, DistributeApplicationPackage, structpb.NewBoolValue(true)))
	assert.False(t, flag.Value(cached))
	require.NoError(t, cached.Refresh(ctx))
	assert.True(t, flag.Value(cached))
}

func TestCachedConcurrentStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	store := testutil.NewStore(t)
	cached := NewCached(NewRepository(store), WithRefreshInterval(5*time.Millisecond), WithLogger(log.DiscardLogger))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cached.Start(ctx)
		}()
		go func() {
			defer wg.Done()
			cached.Stop()
		}()
	}
	wg.Wait()
	cached.Stop()

	// a stopped source can be started again
	cached.Start(ctx)
	cached.Stop()
}
