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

// Package coordination defines the client contract of the strongly consistent,
// hierarchical store shared by every config server: small blobs at paths,
// all-or-nothing transactions with optimistic checks, exclusive locks with a
// bounded wait, and change notifications.
package coordination

import (
	"context"
	"time"
)

// Node is a value stored at a path
type Node struct {
	// Path is the absolute path of the node
	Path string
	// Data is the raw value
	Data []byte
	// Version is the store revision of the last write to the node.
	// A zero version means the node does not exist.
	Version int64
}

// EventType defines the kind of change reported by Watch
type EventType int

const (
	// EventPut is emitted when a node is created or updated
	EventPut EventType = iota
	// EventDelete is emitted when a node is removed
	EventDelete
)

// Event is a change notification
type Event struct {
	Type    EventType
	Path    string
	Data    []byte
	Version int64
}

// Lock is a held exclusive lock.
// Release must be called on every exit path; it is safe to call more than once.
type Lock interface {
	// Path returns the lock path
	Path() string
	// Release gives the lock up
	Release(ctx context.Context) error
}

// Store is the coordination store client
type Store interface {
	// Get reads the node at path. It returns errors.ErrNodeNotFound when the node does not exist.
	Get(ctx context.Context, path string) (*Node, error)
	// Set creates or overwrites the node at path
	Set(ctx context.Context, path string, data []byte) error
	// Exists reports whether the node, or any node below it, exists
	Exists(ctx context.Context, path string) (bool, error)
	// Children returns the sorted names of the direct children of path
	Children(ctx context.Context, path string) ([]string, error)
	// Delete removes the node and everything below it
	Delete(ctx context.Context, path string) error
	// Lock acquires the exclusive lock at path, waiting at most timeout.
	// It returns errors.ErrLockTimeout when the wait expires.
	Lock(ctx context.Context, path string, timeout time.Duration) (Lock, error)
	// Commit applies the transaction atomically. When a check fails nothing is
	// written and errors.ErrTransactionConflict is returned.
	Commit(ctx context.Context, txn *Transaction) error
	// Watch streams changes of path and its descendants until ctx is done
	Watch(ctx context.Context, path string) (<-chan Event, error)
	// Close releases the resources held by the store
	Close() error
}
