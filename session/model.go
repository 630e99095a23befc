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

	"github.com/tochemey/configserver/application"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/filedistribution"
)

// ApplicationPackage is the input of a model build
type ApplicationPackage struct {
	ApplicationID         application.ID
	Reference             filedistribution.FileReference
	Content               []byte
	Version               string
	DockerImageRepository string
	AthenzDomain          string
}

// BuildOptions tune a model build
type BuildOptions struct {
	// Validate turns package validation on
	Validate bool
	// Bootstrap is set when the config server deploys its own applications at startup
	Bootstrap bool
}

// Model is the compiled config model of an application package
type Model interface {
	// Hosts returns the hosts the model is allocated to
	Hosts() []string
	// FileReferences returns the files the model depends on
	FileReferences() []filedistribution.FileReference
}

// ModelBuilder compiles application packages. Build must be a pure function of
// its input: prepare relies on it to be repeatable. Invalid packages are
// reported as errors.ValidationError.
type ModelBuilder interface {
	Build(ctx context.Context, pkg ApplicationPackage, opts BuildOptions) (Model, error)
}

// PackageSource returns the content of application packages
type PackageSource interface {
	Read(ref filedistribution.FileReference) ([]byte, error)
}

// StaticModel is a Model with fixed content
type StaticModel struct {
	HostNames []string
	Files     []filedistribution.FileReference
}

var _ Model = (*StaticModel)(nil)

// Hosts implements Model
func (m *StaticModel) Hosts() []string { return m.HostNames }

// FileReferences implements Model
func (m *StaticModel) FileReferences() []filedistribution.FileReference { return m.Files }

// PackageModelBuilder builds models that depend only on the package itself.
// It is the builder of installs with no model compiler plugged in.
type PackageModelBuilder struct{}

var _ ModelBuilder = PackageModelBuilder{}

// Build implements ModelBuilder
func (PackageModelBuilder) Build(_ context.Context, pkg ApplicationPackage, opts BuildOptions) (Model, error) {
	if opts.Validate && len(pkg.Content) == 0 {
		return nil, gerrors.NewValidationError(errors.New("application package is empty"))
	}
	return &StaticModel{Files: []filedistribution.FileReference{pkg.Reference}}, nil
}
