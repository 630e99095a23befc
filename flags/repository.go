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
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
)

// RootPath is the parent of every flag node
const RootPath = "/flags/v1"

// Repository reads and writes flags in the coordination store
type Repository struct {
	store coordination.Store
}

// NewRepository creates a flag Repository on store
func NewRepository(store coordination.Store) *Repository {
	return &Repository{store: store}
}

// Path returns the node path of flag id
func Path(id ID) string {
	return coordination.Join(RootPath, string(id))
}

// Set stores value for id
func (r *Repository) Set(ctx context.Context, id ID, value *structpb.Value) error {
	bytea, err := protojson.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode flag %s: %w", id, err)
	}
	return r.store.Set(ctx, Path(id), bytea)
}

// Get reads id. The second result is false when the flag is not set.
func (r *Repository) Get(ctx context.Context, id ID) (*structpb.Value, bool, error) {
	node, err := r.store.Get(ctx, Path(id))
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	value := new(structpb.Value)
	if err := protojson.Unmarshal(node.Data, value); err != nil {
		return nil, false, fmt.Errorf("failed to decode flag %s: %w", id, err)
	}
	return value, true, nil
}

// Delete unsets id
func (r *Repository) Delete(ctx context.Context, id ID) error {
	return r.store.Delete(ctx, Path(id))
}

// List reads every stored flag. Undecodable values are reported through the error
// but do not hide the others.
func (r *Repository) List(ctx context.Context) (map[ID]*structpb.Value, error) {
	names, err := r.store.Children(ctx, RootPath)
	if err != nil {
		return nil, err
	}

	values := make(map[ID]*structpb.Value, len(names))
	var errs error
	for _, name := range names {
		value, ok, err := r.Get(ctx, ID(name))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			values[ID(name)] = value
		}
	}
	return values, errs
}
