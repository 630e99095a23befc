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

package coordination

// CheckKind defines a transaction precondition
type CheckKind int

const (
	// CheckVersion requires the node version to equal a given version
	CheckVersion CheckKind = iota
	// CheckAbsent requires the node to not exist
	CheckAbsent
	// CheckLockHeld requires a lock to still be owned by the caller
	CheckLockHeld
)

// Check is a transaction precondition
type Check struct {
	kind    CheckKind
	path    string
	version int64
	lock    Lock
}

// Kind returns the check kind
func (c Check) Kind() CheckKind { return c.kind }

// Path returns the checked path
func (c Check) Path() string { return c.path }

// Version returns the expected version of a CheckVersion
func (c Check) Version() int64 { return c.version }

// Lock returns the lock of a CheckLockHeld
func (c Check) Lock() Lock { return c.lock }

// OpKind defines a transaction operation
type OpKind int

const (
	// OpPut writes a node
	OpPut OpKind = iota
	// OpDelete removes a node and its descendants
	OpDelete
)

// Op is a transaction write
type Op struct {
	kind OpKind
	path string
	data []byte
}

// Kind returns the operation kind
func (o Op) Kind() OpKind { return o.kind }

// Path returns the written path
func (o Op) Path() string { return o.path }

// Data returns the value of an OpPut
func (o Op) Data() []byte { return o.data }

// Transaction is a set of checks and writes committed together.
// It is not safe for concurrent use.
type Transaction struct {
	checks []Check
	ops    []Op
}

// NewTransaction creates an empty transaction
func NewTransaction() *Transaction {
	return &Transaction{}
}

// VersionEquals adds a check that the node at path has the given version.
// A zero version is the same as Absent.
func (t *Transaction) VersionEquals(path string, version int64) *Transaction {
	if version == 0 {
		return t.Absent(path)
	}
	t.checks = append(t.checks, Check{kind: CheckVersion, path: path, version: version})
	return t
}

// Absent adds a check that the node at path does not exist
func (t *Transaction) Absent(path string) *Transaction {
	t.checks = append(t.checks, Check{kind: CheckAbsent, path: path})
	return t
}

// LockHeld adds a check that lock is still owned
func (t *Transaction) LockHeld(lock Lock) *Transaction {
	t.checks = append(t.checks, Check{kind: CheckLockHeld, path: lock.Path(), lock: lock})
	return t
}

// Put adds a write of data at path
func (t *Transaction) Put(path string, data []byte) *Transaction {
	t.ops = append(t.ops, Op{kind: OpPut, path: path, data: data})
	return t
}

// Delete adds a recursive removal of path
func (t *Transaction) Delete(path string) *Transaction {
	t.ops = append(t.ops, Op{kind: OpDelete, path: path})
	return t
}

// Add merges the checks and writes of other into t
func (t *Transaction) Add(other *Transaction) *Transaction {
	if other == nil {
		return t
	}
	t.checks = append(t.checks, other.checks...)
	t.ops = append(t.ops, other.ops...)
	return t
}

// Checks returns the preconditions
func (t *Transaction) Checks() []Check { return t.checks }

// Ops returns the writes
func (t *Transaction) Ops() []Op { return t.ops }

// Empty reports whether the transaction has no writes
func (t *Transaction) Empty() bool { return len(t.ops) == 0 }
