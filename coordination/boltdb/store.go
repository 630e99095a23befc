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

// Package boltdb implements coordination.Store on a local bbolt database.
//
// Writes are atomic bbolt transactions and every commit gets a new store
// revision, so versions behave like etcd's ModRevision. Locks are held in
// memory: the backend serves single-process installs and tests, not a cluster.
package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/atomic"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
)

const fileMode os.FileMode = 0o600

var (
	nodesBucket    = []byte("nodes")
	versionsBucket = []byte("versions")
)

// Store implements coordination.Store using go.etcd.io/bbolt
type Store struct {
	config *Config
	db     *bbolt.DB
	locks  *lockTable
	closed *atomic.Bool

	mu       sync.RWMutex
	watchers map[*watcher]struct{}
}

var _ coordination.Store = (*Store)(nil)

// NewStore opens (or creates) the database described by config
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("coordination/boltdb: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("coordination/boltdb: unable to create database directory: %w", err)
	}

	db, err := bbolt.Open(config.Path, fileMode, &bbolt.Options{Timeout: config.OpenTimeout, NoSync: config.NoSync})
	if err != nil {
		return nil, fmt.Errorf("coordination/boltdb: opening database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(nodesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(versionsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("coordination/boltdb: initializing buckets: %w", err)
	}

	return &Store{
		config:   config,
		db:       db,
		locks:    newLockTable(),
		closed:   atomic.NewBool(false),
		watchers: make(map[*watcher]struct{}),
	}, nil
}

// Get reads the node at path
func (s *Store) Get(ctx context.Context, path string) (*coordination.Node, error) {
	if err := s.ready(ctx, path); err != nil {
		return nil, err
	}

	var node *coordination.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := []byte(path)
		// nodes may hold empty values, the version marks existence
		version := tx.Bucket(versionsBucket).Get(key)
		if version == nil {
			return gerrors.NewErrNodeNotFound(path)
		}
		node = &coordination.Node{
			Path:    path,
			Data:    bytes.Clone(tx.Bucket(nodesBucket).Get(key)),
			Version: decodeVersion(version),
		}
		return nil
	})
	return node, err
}

// Set creates or overwrites the node at path
func (s *Store) Set(ctx context.Context, path string, data []byte) error {
	return s.Commit(ctx, coordination.NewTransaction().Put(path, data))
}

// Exists reports whether the node or any of its descendants exists
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.ready(ctx, path); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		versions := tx.Bucket(versionsBucket)
		if versions.Get([]byte(path)) != nil {
			found = true
			return nil
		}
		prefix := descendantPrefix(path)
		key, _ := versions.Cursor().Seek(prefix)
		found = key != nil && bytes.HasPrefix(key, prefix)
		return nil
	})
	return found, err
}

// Children returns the sorted names of the direct children of path
func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	if err := s.ready(ctx, path); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	err := s.db.View(func(tx *bbolt.Tx) error {
		prefix := descendantPrefix(path)
		cursor := tx.Bucket(nodesBucket).Cursor()
		for key, _ := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, _ = cursor.Next() {
			if child, ok := coordination.Child(path, string(key)); ok {
				seen[child] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	children := make([]string, 0, len(seen))
	for child := range seen {
		children = append(children, child)
	}
	sort.Strings(children)
	return children, nil
}

// Delete removes the node and everything below it
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Commit(ctx, coordination.NewTransaction().Delete(path))
}

// Commit applies the transaction in a single bbolt write transaction
func (s *Store) Commit(ctx context.Context, txn *coordination.Transaction) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, op := range txn.Ops() {
		if err := coordination.ValidatePath(op.Path()); err != nil {
			return err
		}
	}

	var events []coordination.Event
	err := s.db.Update(func(tx *bbolt.Tx) error {
		nodes := tx.Bucket(nodesBucket)
		versions := tx.Bucket(versionsBucket)

		for _, check := range txn.Checks() {
			if !s.holds(versions, check) {
				return gerrors.ErrTransactionConflict
			}
		}

		if txn.Empty() {
			return nil
		}

		revision, err := nodes.NextSequence()
		if err != nil {
			return err
		}

		events = make([]coordination.Event, 0, len(txn.Ops()))
		for _, op := range txn.Ops() {
			switch op.Kind() {
			case coordination.OpPut:
				if err := nodes.Put([]byte(op.Path()), append([]byte{}, op.Data()...)); err != nil {
					return err
				}
				if err := versions.Put([]byte(op.Path()), encodeVersion(int64(revision))); err != nil {
					return err
				}
				events = append(events, coordination.Event{
					Type:    coordination.EventPut,
					Path:    op.Path(),
					Data:    bytes.Clone(op.Data()),
					Version: int64(revision),
				})
			case coordination.OpDelete:
				deleted, err := deleteTree(nodes, versions, op.Path())
				if err != nil {
					return err
				}
				for _, path := range deleted {
					events = append(events, coordination.Event{
						Type:    coordination.EventDelete,
						Path:    path,
						Version: int64(revision),
					})
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gerrors.ErrTransactionConflict) {
			return err
		}
		return fmt.Errorf("coordination/boltdb: commit failed: %w", err)
	}

	s.publish(events)
	return nil
}

// Close releases the database. Close is idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	for w := range s.watchers {
		w.stop()
		delete(s.watchers, w)
	}
	s.mu.Unlock()

	return s.db.Close()
}

func (s *Store) holds(versions *bbolt.Bucket, check coordination.Check) bool {
	key := []byte(check.Path())
	switch check.Kind() {
	case coordination.CheckVersion:
		version := versions.Get(key)
		return version != nil && decodeVersion(version) == check.Version()
	case coordination.CheckAbsent:
		return versions.Get(key) == nil
	case coordination.CheckLockHeld:
		held, ok := check.Lock().(*lock)
		return ok && held.table == s.locks && held.isHeld()
	default:
		return false
	}
}

func (s *Store) ready(ctx context.Context, path string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return coordination.ValidatePath(path)
}

func (s *Store) ensureOpen() error {
	if s.closed.Load() {
		return gerrors.ErrStoreClosed
	}
	return nil
}

func deleteTree(nodes, versions *bbolt.Bucket, path string) ([]string, error) {
	keys := make([][]byte, 0)
	if versions.Get([]byte(path)) != nil {
		keys = append(keys, []byte(path))
	}

	prefix := descendantPrefix(path)
	cursor := versions.Cursor()
	for key, _ := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, _ = cursor.Next() {
		keys = append(keys, bytes.Clone(key))
	}

	deleted := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := nodes.Delete(key); err != nil {
			return nil, err
		}
		if err := versions.Delete(key); err != nil {
			return nil, err
		}
		deleted = append(deleted, string(key))
	}
	return deleted, nil
}

func descendantPrefix(path string) []byte {
	return []byte(strings.TrimSuffix(path, "/") + "/")
}

func encodeVersion(version int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	return buf
}

func decodeVersion(raw []byte) int64 {
	if len(raw) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(raw))
}
