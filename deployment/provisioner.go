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

package deployment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
)

// HostProvisioner allocates hosts to applications.
// Activate adds its operations to the activation transaction so that host
// assignment and session activation commit together.
type HostProvisioner interface {
	// Activate adds the allocation of hosts to id to txn
	Activate(txn *coordination.Transaction, id application.ID, hosts []string) error
	// Restart restarts the hosts of id matched by filter
	Restart(ctx context.Context, id application.ID, filter HostFilter) error
}

// HostFilter selects hosts. The zero value matches every host.
type HostFilter struct {
	hostnames mapset.Set[string]
}

// AllHosts matches every host
func AllHosts() HostFilter {
	return HostFilter{}
}

// Hostnames matches the given hosts only
func Hostnames(names ...string) HostFilter {
	return HostFilter{hostnames: mapset.NewThreadUnsafeSet(names...)}
}

// Matches reports whether host is selected
func (f HostFilter) Matches(host string) bool {
	return f.hostnames == nil || f.hostnames.Contains(host)
}

// String returns a readable form of the filter
func (f HostFilter) String() string {
	if f.hostnames == nil {
		return "all hosts"
	}
	return "hosts [" + strings.Join(mapset.Sorted(f.hostnames), ", ") + "]"
}

// provisionRoot is where StoreProvisioner keeps its state
const provisionRoot = "/provision/v1"

// StoreProvisioner records host allocations and restart generations in the
// coordination store. Node agents watch these nodes to converge.
type StoreProvisioner struct {
	store coordination.Store
}

var _ HostProvisioner = (*StoreProvisioner)(nil)

// NewStoreProvisioner creates a StoreProvisioner on store
func NewStoreProvisioner(store coordination.Store) *StoreProvisioner {
	return &StoreProvisioner{store: store}
}

// AllocationPath returns the node holding the hosts of id
func AllocationPath(id application.ID) string {
	return coordination.Join(provisionRoot, "allocations", id.SerializedForm())
}

// RestartPath returns the node holding the restart generation of host
func RestartPath(host string) string {
	return coordination.Join(provisionRoot, "restarts", host)
}

// Activate implements HostProvisioner
func (p *StoreProvisioner) Activate(txn *coordination.Transaction, id application.ID, hosts []string) error {
	values := make([]*structpb.Value, 0, len(hosts))
	for _, host := range hosts {
		values = append(values, structpb.NewStringValue(host))
	}
	data, err := protojson.Marshal(&structpb.ListValue{Values: values})
	if err != nil {
		return err
	}
	txn.Put(AllocationPath(id), data)
	return nil
}

// Hosts returns the hosts allocated to id
func (p *StoreProvisioner) Hosts(ctx context.Context, id application.ID) ([]string, error) {
	node, err := p.store.Get(ctx, AllocationPath(id))
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	list := new(structpb.ListValue)
	if err := protojson.Unmarshal(node.Data, list); err != nil {
		return nil, fmt.Errorf("invalid host allocation of %s: %w", id, err)
	}
	hosts := make([]string, 0, len(list.GetValues()))
	for _, value := range list.GetValues() {
		hosts = append(hosts, value.GetStringValue())
	}
	sort.Strings(hosts)
	return hosts, nil
}

// RestartGeneration returns the restart generation of host, 0 when never restarted
func (p *StoreProvisioner) RestartGeneration(ctx context.Context, host string) (int64, error) {
	node, err := p.store.Get(ctx, RestartPath(host))
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(string(node.Data), 10, 64)
}

// Restart implements HostProvisioner. It bumps the restart generation of
// every matched host in one transaction.
func (p *StoreProvisioner) Restart(ctx context.Context, id application.ID, filter HostFilter) error {
	hosts, err := p.Hosts(ctx, id)
	if err != nil {
		return err
	}

	txn := coordination.NewTransaction()
	for _, host := range hosts {
		if !filter.Matches(host) {
			continue
		}
		node, err := p.store.Get(ctx, RestartPath(host))
		switch {
		case err == nil:
			generation, err := strconv.ParseInt(string(node.Data), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid restart generation of %s: %w", host, err)
			}
			txn.VersionEquals(node.Path, node.Version).Put(node.Path, []byte(strconv.FormatInt(generation+1, 10)))
		case errors.Is(err, gerrors.ErrNodeNotFound):
			txn.Absent(RestartPath(host)).Put(RestartPath(host), []byte("1"))
		default:
			return err
		}
	}

	if txn.Empty() {
		return fmt.Errorf("no hosts of %s match %s", id, filter)
	}
	return p.store.Commit(ctx, txn)
}
