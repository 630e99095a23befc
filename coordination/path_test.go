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

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, "/config/v2/tenants/default", Join("config", "v2", "tenants", "default"))
	assert.Equal(t, "/a/b", Join("/a/", "/b/"))
	assert.Equal(t, "/", Join())
}

func TestChild(t *testing.T) {
	child, ok := Child("/a", "/a/b/c")
	require.True(t, ok)
	assert.Equal(t, "b", child)

	child, ok = Child("/", "/a/b")
	require.True(t, ok)
	assert.Equal(t, "a", child)

	_, ok = Child("/a", "/ab/c")
	assert.False(t, ok)
	_, ok = Child("/a", "/a")
	assert.False(t, ok)
}

func TestCovers(t *testing.T) {
	assert.True(t, Covers("/a", "/a"))
	assert.True(t, Covers("/a", "/a/b"))
	assert.True(t, Covers("/", "/a"))
	assert.False(t, Covers("/a", "/ab"))
}

func TestValidatePath(t *testing.T) {
	require.NoError(t, ValidatePath("/a/b"))
	require.Error(t, ValidatePath("a/b"))
	require.Error(t, ValidatePath("/a/b/"))
	require.Error(t, ValidatePath("/a//b"))
}

type stubLock struct{ path string }

func (l stubLock) Path() string                 { return l.path }
func (stubLock) Release(_ context.Context) error { return nil }

func TestTransaction(t *testing.T) {
	txn := NewTransaction().
		VersionEquals("/a", 3).
		VersionEquals("/b", 0).
		LockHeld(stubLock{path: "/locks/x"}).
		Put("/a", []byte("1"))

	other := NewTransaction().Delete("/c").Absent("/d")
	txn.Add(other).Add(nil)

	require.Len(t, txn.Checks(), 4)
	assert.Equal(t, CheckVersion, txn.Checks()[0].Kind())
	assert.Equal(t, int64(3), txn.Checks()[0].Version())
	assert.Equal(t, CheckAbsent, txn.Checks()[1].Kind())
	assert.Equal(t, CheckLockHeld, txn.Checks()[2].Kind())
	assert.Equal(t, "/locks/x", txn.Checks()[2].Path())
	assert.NotNil(t, txn.Checks()[2].Lock())

	require.Len(t, txn.Ops(), 2)
	assert.Equal(t, OpPut, txn.Ops()[0].Kind())
	assert.Equal(t, []byte("1"), txn.Ops()[0].Data())
	assert.Equal(t, OpDelete, txn.Ops()[1].Kind())
	assert.Equal(t, "/c", txn.Ops()[1].Path())

	assert.False(t, txn.Empty())
	assert.True(t, NewTransaction().Absent("/x").Empty())
}
