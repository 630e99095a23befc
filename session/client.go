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

package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/filedistribution"
)

// field names, one node each below the session path
const (
	statusField                = "status"
	applicationIDField         = "applicationId"
	createTimeField            = "createTime"
	packageReferenceField      = "packageReference"
	activeSessionAtCreateField = "activeSessionAtCreate"
	versionField               = "version"
	dockerImageRepositoryField = "dockerImageRepository"
	athenzDomainField          = "athenzDomain"
	allocatedHostsField        = "allocatedHosts"
)

// SessionsPath returns the parent node of the sessions of tenant
func SessionsPath(tenant string) string {
	return coordination.Join(application.TenantPath(tenant), "sessions")
}

// Path returns the node of one session
func Path(tenant string, sessionID int64) string {
	return coordination.Join(SessionsPath(tenant), strconv.FormatInt(sessionID, 10))
}

// Client reads and writes the fields of one session
type Client struct {
	store     coordination.Store
	tenant    string
	sessionID int64
	path      string
}

// NewClient creates the Client of session sessionID of tenant
func NewClient(store coordination.Store, tenant string, sessionID int64) *Client {
	return &Client{
		store:     store,
		tenant:    tenant,
		sessionID: sessionID,
		path:      Path(tenant, sessionID),
	}
}

// Path returns the session node
func (c *Client) Path() string {
	return c.path
}

// StatusPath returns the status node
func (c *Client) StatusPath() string {
	return c.fieldPath(statusField)
}

// Exists reports whether the session was created
func (c *Client) Exists(ctx context.Context) (bool, error) {
	return c.store.Exists(ctx, c.StatusPath())
}

// ReadStatus reads the status
func (c *Client) ReadStatus(ctx context.Context) (Status, error) {
	status, _, err := c.ReadStatusVersion(ctx)
	return status, err
}

// ReadStatusVersion reads the status together with the store version of its node
func (c *Client) ReadStatusVersion(ctx context.Context) (Status, int64, error) {
	node, err := c.store.Get(ctx, c.StatusPath())
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return StatusNone, 0, gerrors.NewErrSessionNotFound(c.sessionID)
		}
		return StatusNone, 0, err
	}
	return ParseStatus(string(node.Data)), node.Version, nil
}

// WriteStatus writes the status
func (c *Client) WriteStatus(ctx context.Context, status Status) error {
	return c.store.Commit(ctx, c.StatusTransaction(status))
}

// StatusTransaction returns the operations setting the status
func (c *Client) StatusTransaction(status Status) *coordination.Transaction {
	return coordination.NewTransaction().Put(c.StatusPath(), []byte(status))
}

// ReadApplicationID reads the application id
func (c *Client) ReadApplicationID(ctx context.Context) (application.ID, error) {
	data, err := c.read(ctx, applicationIDField)
	if err != nil {
		return application.ID{}, err
	}
	return application.ParseID(string(data))
}

// WriteApplicationID writes the application id
func (c *Client) WriteApplicationID(ctx context.Context, id application.ID) error {
	return c.store.Set(ctx, c.fieldPath(applicationIDField), []byte(id.SerializedForm()))
}

// ReadCreateTime reads the creation time. A missing value reads as the epoch.
func (c *Client) ReadCreateTime(ctx context.Context) (time.Time, error) {
	data, ok, err := c.readOptional(ctx, createTimeField)
	if err != nil || !ok {
		return time.Unix(0, 0).UTC(), err
	}
	seconds, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid create time of session %d: %w", c.sessionID, err)
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// WriteCreateTime writes the creation time with second resolution
func (c *Client) WriteCreateTime(ctx context.Context, createTime time.Time) error {
	return c.store.Set(ctx, c.fieldPath(createTimeField), encodeTime(createTime))
}

// ReadPackageReference reads the application package reference
func (c *Client) ReadPackageReference(ctx context.Context) (filedistribution.FileReference, error) {
	data, err := c.read(ctx, packageReferenceField)
	if err != nil {
		return "", err
	}
	return filedistribution.ParseFileReference(string(data))
}

// WritePackageReference writes the application package reference
func (c *Client) WritePackageReference(ctx context.Context, ref filedistribution.FileReference) error {
	if ref == "" {
		return fmt.Errorf("empty application package reference for tenant %s, session id %d", c.tenant, c.sessionID)
	}
	return c.store.Set(ctx, c.fieldPath(packageReferenceField), []byte(ref))
}

// ReadActiveSessionAtCreate reads the session that was active at creation, 0 when none was
func (c *Client) ReadActiveSessionAtCreate(ctx context.Context) (int64, error) {
	data, ok, err := c.readOptional(ctx, activeSessionAtCreateField)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseInt(string(data), 10, 64)
}

// ReadVersion reads the platform version
func (c *Client) ReadVersion(ctx context.Context) (string, error) {
	data, _, err := c.readOptional(ctx, versionField)
	return string(data), err
}

// WriteVersion writes the platform version
func (c *Client) WriteVersion(ctx context.Context, version string) error {
	return c.store.Set(ctx, c.fieldPath(versionField), []byte(version))
}

// ReadDockerImageRepository reads the optional docker image repository
func (c *Client) ReadDockerImageRepository(ctx context.Context) (string, bool, error) {
	data, ok, err := c.readOptional(ctx, dockerImageRepositoryField)
	return string(data), ok && len(data) > 0, err
}

// WriteDockerImageRepository writes the docker image repository. An empty value removes it.
func (c *Client) WriteDockerImageRepository(ctx context.Context, repository string) error {
	return c.writeOptional(ctx, dockerImageRepositoryField, repository)
}

// ReadAthenzDomain reads the optional athenz domain
func (c *Client) ReadAthenzDomain(ctx context.Context) (string, bool, error) {
	data, ok, err := c.readOptional(ctx, athenzDomainField)
	return string(data), ok && len(data) > 0, err
}

// WriteAthenzDomain writes the athenz domain. An empty value removes it.
func (c *Client) WriteAthenzDomain(ctx context.Context, domain string) error {
	return c.writeOptional(ctx, athenzDomainField, domain)
}

// ReadAllocatedHosts reads the hosts allocated to the session
func (c *Client) ReadAllocatedHosts(ctx context.Context) ([]string, error) {
	data, ok, err := c.readOptional(ctx, allocatedHostsField)
	if err != nil || !ok {
		return nil, err
	}

	list := new(structpb.ListValue)
	if err := protojson.Unmarshal(data, list); err != nil {
		return nil, fmt.Errorf("invalid allocated hosts of session %d: %w", c.sessionID, err)
	}

	hosts := make([]string, 0, len(list.GetValues()))
	for _, value := range list.GetValues() {
		hosts = append(hosts, value.GetStringValue())
	}
	return hosts, nil
}

// AllocatedHostsTransaction returns the operations storing hosts
func (c *Client) AllocatedHostsTransaction(hosts []string) (*coordination.Transaction, error) {
	values := make([]any, len(hosts))
	for i, host := range hosts {
		values[i] = host
	}

	list, err := structpb.NewList(values)
	if err != nil {
		return nil, err
	}

	data, err := protojson.Marshal(list)
	if err != nil {
		return nil, err
	}
	return coordination.NewTransaction().Put(c.fieldPath(allocatedHostsField), data), nil
}

// CreateTransaction returns the operations creating the session in status NEW.
// It fails with a transaction conflict when the session already exists.
func (c *Client) CreateTransaction(id application.ID, ref filedistribution.FileReference, createTime time.Time, activeSessionAtCreate int64) *coordination.Transaction {
	return coordination.NewTransaction().
		Absent(c.StatusPath()).
		Put(c.StatusPath(), []byte(StatusNew)).
		Put(c.fieldPath(applicationIDField), []byte(id.SerializedForm())).
		Put(c.fieldPath(createTimeField), encodeTime(createTime)).
		Put(c.fieldPath(packageReferenceField), []byte(ref)).
		Put(c.fieldPath(activeSessionAtCreateField), []byte(strconv.FormatInt(activeSessionAtCreate, 10)))
}

// DeleteTransaction returns the operations removing the session
func (c *Client) DeleteTransaction() *coordination.Transaction {
	return coordination.NewTransaction().Delete(c.path)
}

func (c *Client) fieldPath(field string) string {
	return coordination.Join(c.path, field)
}

func (c *Client) read(ctx context.Context, field string) ([]byte, error) {
	node, err := c.store.Get(ctx, c.fieldPath(field))
	if err != nil {
		return nil, err
	}
	return node.Data, nil
}

func (c *Client) readOptional(ctx context.Context, field string) ([]byte, bool, error) {
	data, err := c.read(ctx, field)
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *Client) writeOptional(ctx context.Context, field, value string) error {
	if value == "" {
		return c.store.Delete(ctx, c.fieldPath(field))
	}
	return c.store.Set(ctx, c.fieldPath(field), []byte(value))
}

func encodeTime(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.Unix(), 10))
}
