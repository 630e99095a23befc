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

// Package etcd implements coordination.Store on etcd v3.
//
// Paths map one to one onto keys below the configured namespace. A node's
// version is its ModRevision, so transaction checks become etcd compares, and
// locks are concurrency.Mutex instances whose ownership can be asserted inside
// a transaction.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/atomic"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
)

// Store is an etcd-backed implementation of coordination.Store.
//
// Unless otherwise stated by the called method, any provided context is wrapped
// with the configured per-operation timeout.
type Store struct {
	config    *Config
	client    *clientv3.Client
	kv        clientv3.KV
	watcher   clientv3.Watcher
	closeFunc func(*clientv3.Client) error
	closed    *atomic.Bool
}

// Ensure Store implements coordination.Store.
var _ coordination.Store = (*Store)(nil)

// NewStore creates a new Store backed by etcd.
//
// It validates the provided configuration, checks the first configured
// endpoint, and applies the configured namespace to every key, lease and watch.
func NewStore(config *Config) (*Store, error) {
	return newStore(config, clientv3.New, func(client *clientv3.Client) error { return client.Close() })
}

func newStore(config *Config, clientFunc func(clientv3.Config) (*clientv3.Client, error), closeFunc func(*clientv3.Client) error) (*Store, error) {
	if config == nil {
		return nil, errors.New("coordination/etcd: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if clientFunc == nil {
		clientFunc = clientv3.New
	}

	if closeFunc == nil {
		closeFunc = func(client *clientv3.Client) error { return client.Close() }
	}

	client, err := clientFunc(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
		Context:     config.Context,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(config.Context, config.DialTimeout)
	defer cancel()

	if _, err = client.Status(ctx, config.Endpoints[0]); err != nil {
		if cerr := closeFunc(client); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	// the lock sessions go through the client, so the client itself is namespaced
	prefix := normalizeNamespace(config.Namespace)
	client.KV = namespace.NewKV(client.KV, prefix)
	client.Watcher = namespace.NewWatcher(client.Watcher, prefix)
	client.Lease = namespace.NewLease(client.Lease, prefix)

	return &Store{
		config:    config,
		client:    client,
		kv:        client.KV,
		watcher:   client.Watcher,
		closeFunc: closeFunc,
		closed:    atomic.NewBool(false),
	}, nil
}

// Get reads the node at path
func (s *Store) Get(ctx context.Context, path string) (*coordination.Node, error) {
	if err := s.ready(path); err != nil {
		return nil, err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Get(opCtx, path)
	if err != nil {
		return nil, fmt.Errorf("coordination/etcd: failed to get %s: %w", path, err)
	}

	if len(resp.Kvs) == 0 {
		return nil, gerrors.NewErrNodeNotFound(path)
	}

	kv := resp.Kvs[0]
	return &coordination.Node{
		Path:    path,
		Data:    kv.Value,
		Version: kv.ModRevision,
	}, nil
}

// Set creates or overwrites the node at path
func (s *Store) Set(ctx context.Context, path string, data []byte) error {
	if err := s.ready(path); err != nil {
		return err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.kv.Put(opCtx, path, string(data)); err != nil {
		return fmt.Errorf("coordination/etcd: failed to set %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the node or any of its descendants exists
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.ready(path); err != nil {
		return false, err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Get(opCtx, path, clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("coordination/etcd: failed to check %s: %w", path, err)
	}
	if resp.Count > 0 {
		return true, nil
	}

	resp, err = s.kv.Get(opCtx, descendantPrefix(path), clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("coordination/etcd: failed to check %s: %w", path, err)
	}
	return resp.Count > 0, nil
}

// Children returns the sorted names of the direct children of path
func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	if err := s.ready(path); err != nil {
		return nil, err
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Get(opCtx, descendantPrefix(path), clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, fmt.Errorf("coordination/etcd: failed to list %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(resp.Kvs))
	children := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		child, ok := coordination.Child(path, string(kv.Key))
		if !ok {
			continue
		}
		if _, dup := seen[child]; dup {
			continue
		}
		seen[child] = struct{}{}
		children = append(children, child)
	}

	sort.Strings(children)
	return children, nil
}

// Delete removes the node and everything below it
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Commit(ctx, coordination.NewTransaction().Delete(path))
}

// Commit translates the transaction into a single etcd Txn
func (s *Store) Commit(ctx context.Context, txn *coordination.Transaction) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	cmps := make([]clientv3.Cmp, 0, len(txn.Checks()))
	for _, check := range txn.Checks() {
		cmp, err := compare(check)
		if err != nil {
			return err
		}
		cmps = append(cmps, cmp)
	}

	ops := make([]clientv3.Op, 0, 2*len(txn.Ops()))
	for _, op := range txn.Ops() {
		if err := coordination.ValidatePath(op.Path()); err != nil {
			return err
		}
		switch op.Kind() {
		case coordination.OpPut:
			ops = append(ops, clientv3.OpPut(op.Path(), string(op.Data())))
		case coordination.OpDelete:
			ops = append(ops,
				clientv3.OpDelete(op.Path()),
				clientv3.OpDelete(descendantPrefix(op.Path()), clientv3.WithPrefix()))
		}
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Txn(opCtx).If(cmps...).Then(ops...).Commit()
	if err != nil {
		return fmt.Errorf("coordination/etcd: failed to commit transaction: %w", err)
	}

	if !resp.Succeeded {
		return gerrors.ErrTransactionConflict
	}
	return nil
}

// Watch streams changes of path and its descendants.
//
// The returned channel is closed when the watch terminates or when ctx is done.
func (s *Store) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if err := s.ready(path); err != nil {
		return nil, err
	}

	events := make(chan coordination.Event)
	watchChan := s.watcher.Watch(ctx, path, clientv3.WithPrefix(), clientv3.WithPrevKV())

	go func() {
		defer close(events)
		for resp := range watchChan {
			if resp.Err() != nil {
				return
			}
			for _, ev := range resp.Events {
				key := string(ev.Kv.Key)
				if !coordination.Covers(path, key) {
					continue
				}
				event := toEvent(ev)
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// Close releases the etcd client. Close is idempotent.
func (s *Store) Close() error {
	if s.client == nil || s.closed.Swap(true) {
		return nil
	}

	if s.closeFunc != nil {
		return s.closeFunc(s.client)
	}

	return s.client.Close()
}

func compare(check coordination.Check) (clientv3.Cmp, error) {
	switch check.Kind() {
	case coordination.CheckVersion:
		return clientv3.Compare(clientv3.ModRevision(check.Path()), "=", check.Version()), nil
	case coordination.CheckAbsent:
		return clientv3.Compare(clientv3.CreateRevision(check.Path()), "=", 0), nil
	case coordination.CheckLockHeld:
		held, ok := check.Lock().(*lock)
		if !ok {
			return clientv3.Cmp{}, fmt.Errorf("coordination/etcd: lock %s was not acquired from etcd", check.Path())
		}
		return held.mutex.IsOwner(), nil
	default:
		return clientv3.Cmp{}, fmt.Errorf("coordination/etcd: unknown check kind %d", check.Kind())
	}
}

func toEvent(ev *clientv3.Event) coordination.Event {
	if ev.Type == clientv3.EventTypeDelete {
		return coordination.Event{
			Type:    coordination.EventDelete,
			Path:    string(ev.Kv.Key),
			Version: ev.Kv.ModRevision,
		}
	}
	return coordination.Event{
		Type:    coordination.EventPut,
		Path:    string(ev.Kv.Key),
		Data:    ev.Kv.Value,
		Version: ev.Kv.ModRevision,
	}
}

func (s *Store) ready(path string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return coordination.ValidatePath(path)
}

func (s *Store) ensureOpen() error {
	if s.closed != nil && s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = s.config.Context
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

func (s *Store) lockTTLSeconds() int {
	seconds := int(s.config.LockTTL / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func normalizeNamespace(value string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(value), "/")
	if trimmed == "" {
		return defaultNamespace
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "/" + trimmed
	}
	return trimmed
}

func descendantPrefix(path string) string {
	return strings.TrimSuffix(path, "/") + "/"
}
