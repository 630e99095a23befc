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

package etcd

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testcontainer "github.com/testcontainers/testcontainers-go/modules/etcd"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/atomic"

	"github.com/tochemey/configserver/coordination"
	"github.com/tochemey/configserver/coordination/storetest"
	gerrors "github.com/tochemey/configserver/errors"
)

var (
	etcdOnce      sync.Once
	etcdContainer *testcontainer.EtcdContainer
	etcdEndpoints []string
	etcdErr       error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if etcdContainer != nil {
		_ = testcontainers.TerminateContainer(etcdContainer)
	}
	os.Exit(code)
}

// requireEtcd starts the shared etcd container on first use and skips the
// test when no container runtime is reachable
func requireEtcd(t *testing.T) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	etcdOnce.Do(func() {
		ctx := context.Background()
		etcdContainer, etcdErr = testcontainer.Run(ctx, "gcr.io/etcd-development/etcd:v3.5.14")
		if etcdErr != nil {
			return
		}
		etcdEndpoints, etcdErr = etcdContainer.ClientEndpoints(ctx)
	})

	if etcdErr != nil {
		t.Skipf("etcd container is not available: %v", etcdErr)
	}
}

func newTestStore(t *testing.T) coordination.Store {
	t.Helper()
	store, err := NewStore(&Config{
		Endpoints: etcdEndpoints,
		Namespace: "/configserver-test",
		LockTTL:   5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	requireEtcd(t)
	storetest.Run(t, newTestStore)
}

func TestNewStore(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		store, err := NewStore(nil)
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("invalid config", func(t *testing.T) {
		store, err := NewStore(&Config{})
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("client error", func(t *testing.T) {
		store, err := newStore(&Config{Endpoints: []string{"127.0.0.1:1"}}, func(clientv3.Config) (*clientv3.Client, error) {
			return nil, errors.New("dial error")
		}, nil)
		require.EqualError(t, err, "dial error")
		require.Nil(t, store)
	})

	t.Run("default namespace", func(t *testing.T) {
		requireEtcd(t)
		config := &Config{Endpoints: etcdEndpoints}
		store, err := NewStore(config)
		require.NoError(t, err)
		assert.Equal(t, defaultNamespace, config.Namespace)
		require.NoError(t, store.Close())
		// idempotent
		require.NoError(t, store.Close())
	})
}

func TestNamespaceIsolation(t *testing.T) {
	requireEtcd(t)
	ctx := context.Background()

	first, err := NewStore(&Config{Endpoints: etcdEndpoints, Namespace: "/ns-a"})
	require.NoError(t, err)
	defer first.Close()

	second, err := NewStore(&Config{Endpoints: etcdEndpoints, Namespace: "ns-b/"})
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Set(ctx, "/isolated/key", []byte("a")))

	_, err = second.Get(ctx, "/isolated/key")
	require.ErrorIs(t, err, gerrors.ErrNodeNotFound)

	node, err := first.Get(ctx, "/isolated/key")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), node.Data)
}

func TestStoreErrorPaths(t *testing.T) {
	ctx := context.Background()
	config := &Config{Endpoints: []string{"127.0.0.1:2379"}}
	config.Sanitize()

	newFake := func(kv clientv3.KV) *Store {
		return &Store{config: config, kv: kv, watcher: &fakeWatcher{}, closed: atomic.NewBool(false)}
	}

	t.Run("get error", func(t *testing.T) {
		store := newFake(&fakeKV{getErr: errors.New("get error")})
		_, err := store.Get(ctx, "/a")
		require.ErrorContains(t, err, "get error")
		_, err = store.Exists(ctx, "/a")
		require.ErrorContains(t, err, "get error")
		_, err = store.Children(ctx, "/a")
		require.ErrorContains(t, err, "get error")
	})

	t.Run("put error", func(t *testing.T) {
		store := newFake(&fakeKV{putErr: errors.New("put error")})
		require.ErrorContains(t, store.Set(ctx, "/a", nil), "put error")
	})

	t.Run("txn error", func(t *testing.T) {
		store := newFake(&fakeKV{txn: &fakeTxn{err: errors.New("txn error")}})
		err := store.Commit(ctx, coordination.NewTransaction().Put("/a", nil))
		require.ErrorContains(t, err, "txn error")
	})

	t.Run("txn not succeeded", func(t *testing.T) {
		store := newFake(&fakeKV{txn: &fakeTxn{resp: &clientv3.TxnResponse{Succeeded: false}}})
		err := store.Commit(ctx, coordination.NewTransaction().Absent("/a").Put("/a", nil))
		require.ErrorIs(t, err, gerrors.ErrTransactionConflict)
	})

	t.Run("foreign lock", func(t *testing.T) {
		store := newFake(&fakeKV{})
		err := store.Commit(ctx, coordination.NewTransaction().LockHeld(foreignLock{}).Put("/a", nil))
		require.ErrorContains(t, err, "was not acquired from etcd")
	})

	t.Run("invalid path", func(t *testing.T) {
		store := newFake(&fakeKV{})
		require.Error(t, store.Set(ctx, "relative", nil))
		require.Error(t, store.Commit(ctx, coordination.NewTransaction().Put("relative", nil)))
	})

	t.Run("closed", func(t *testing.T) {
		store := newFake(&fakeKV{})
		store.closed.Store(true)
		_, err := store.Get(ctx, "/a")
		require.ErrorIs(t, err, gerrors.ErrStoreClosed)
		require.ErrorIs(t, store.Commit(ctx, coordination.NewTransaction()), gerrors.ErrStoreClosed)
	})
}

func TestStoreChildrenFromKeys(t *testing.T) {
	kv := &fakeKV{getResp: &clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{
		{Key: []byte("/root/b/x")},
		{Key: []byte("/root/a")},
		{Key: []byte("/root/b")},
		{Key: []byte("/root/b/y/z")},
	}}}
	config := &Config{Endpoints: []string{"127.0.0.1:2379"}}
	config.Sanitize()
	store := &Store{config: config, kv: kv, closed: atomic.NewBool(false)}

	children, err := store.Children(context.Background(), "/root")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, children)
}

func TestStoreWatchConversion(t *testing.T) {
	ch := make(chan clientv3.WatchResponse, 1)
	config := &Config{Endpoints: []string{"127.0.0.1:2379"}}
	config.Sanitize()
	store := &Store{config: config, kv: &fakeKV{}, watcher: &fakeWatcher{ch: ch}, closed: atomic.NewBool(false)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := store.Watch(ctx, "/root")
	require.NoError(t, err)

	ch <- clientv3.WatchResponse{Events: []*clientv3.Event{
		{Type: mvccpb.PUT, Kv: &mvccpb.KeyValue{Key: []byte("/rootless"), ModRevision: 1}},
		{Type: mvccpb.PUT, Kv: &mvccpb.KeyValue{Key: []byte("/root/a"), Value: []byte("v"), ModRevision: 2}},
		{Type: mvccpb.DELETE, Kv: &mvccpb.KeyValue{Key: []byte("/root/a"), ModRevision: 3}},
	}}
	close(ch)

	first := <-events
	assert.Equal(t, coordination.Event{Type: coordination.EventPut, Path: "/root/a", Data: []byte("v"), Version: 2}, first)
	second := <-events
	assert.Equal(t, coordination.Event{Type: coordination.EventDelete, Path: "/root/a", Version: 3}, second)

	_, open := <-events
	assert.False(t, open)
}

func TestNormalizeNamespace(t *testing.T) {
	assert.Equal(t, defaultNamespace, normalizeNamespace("  "))
	assert.Equal(t, "/a", normalizeNamespace("a/"))
	assert.Equal(t, "/a/b", normalizeNamespace("/a/b"))
}

func TestConfigValidate(t *testing.T) {
	config := &Config{Endpoints: []string{"127.0.0.1:2379"}, LockTTL: 10 * time.Millisecond}
	config.Sanitize()
	require.Error(t, config.Validate())

	config.LockTTL = time.Second
	require.NoError(t, config.Validate())

	config.Endpoints = []string{""}
	require.Error(t, config.Validate())
}

type foreignLock struct{}

func (foreignLock) Path() string                  { return "/foreign" }
func (foreignLock) Release(context.Context) error { return nil }

type fakeKV struct {
	getResp *clientv3.GetResponse
	getErr  error
	putErr  error
	txn     clientv3.Txn
}

func (f *fakeKV) Put(context.Context, string, string, ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &clientv3.PutResponse{}, nil
}

func (f *fakeKV) Get(context.Context, string, ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.getResp == nil {
		return &clientv3.GetResponse{}, nil
	}
	return f.getResp, nil
}

func (f *fakeKV) Delete(context.Context, string, ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	return &clientv3.DeleteResponse{}, nil
}

func (f *fakeKV) Compact(context.Context, int64, ...clientv3.CompactOption) (*clientv3.CompactResponse, error) {
	return &clientv3.CompactResponse{}, nil
}

func (f *fakeKV) Do(context.Context, clientv3.Op) (clientv3.OpResponse, error) {
	return clientv3.OpResponse{}, nil
}

func (f *fakeKV) Txn(context.Context) clientv3.Txn {
	if f.txn == nil {
		return &fakeTxn{}
	}
	return f.txn
}

type fakeTxn struct {
	resp *clientv3.TxnResponse
	err  error
}

func (f *fakeTxn) If(...clientv3.Cmp) clientv3.Txn { return f }
func (f *fakeTxn) Then(...clientv3.Op) clientv3.Txn { return f }
func (f *fakeTxn) Else(...clientv3.Op) clientv3.Txn { return f }

func (f *fakeTxn) Commit() (*clientv3.TxnResponse, error) {
	if f.resp == nil {
		return &clientv3.TxnResponse{Succeeded: true}, f.err
	}
	return f.resp, f.err
}

type fakeWatcher struct {
	ch clientv3.WatchChan
}

func (f *fakeWatcher) Watch(context.Context, string, ...clientv3.OpOption) clientv3.WatchChan {
	return f.ch
}

func (f *fakeWatcher) RequestProgress(context.Context) error { return nil }

func (f *fakeWatcher) Close() error { return nil }
