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

package filedistribution

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"

	gerrors "github.com/tochemey/configserver/errors"
)

const packageFile = "package.zst"

// maxDecodedSize bounds the memory used to decode one package
const maxDecodedSize = 256 << 20

// Directory stores packages on local disk, one sub directory per reference.
// Packages are kept zstd compressed.
type Directory struct {
	root string
}

// NewDirectory creates the directory at root when needed
func NewDirectory(root string) (*Directory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create file reference directory %s: %w", root, err)
	}
	return &Directory{root: root}, nil
}

// Root returns the directory path
func (d *Directory) Root() string {
	return d.root
}

// Path returns the local path of the package addressed by ref
func (d *Directory) Path(ref FileReference) string {
	return filepath.Join(d.root, ref.String(), packageFile)
}

// List returns the references present on disk. Entries that are not
// valid references are ignored.
func (d *Directory) List() (mapset.Set[FileReference], error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.root, err)
	}

	refs := mapset.NewThreadUnsafeSet[FileReference]()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ref, err := ParseFileReference(entry.Name())
		if err != nil {
			continue
		}
		refs.Add(ref)
	}
	return refs, nil
}

// Has reports whether the package addressed by ref is on disk
func (d *Directory) Has(ref FileReference) (bool, error) {
	_, err := os.Stat(d.Path(ref))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Write stores content and returns its reference. Writing a package that is
// already present only refreshes its modification time.
func (d *Directory) Write(content []byte) (FileReference, error) {
	ref := NewFileReference(content)
	target := d.Path(ref)

	exists, err := d.Has(ref)
	if err != nil {
		return "", err
	}
	if exists {
		now := time.Now()
		return ref, os.Chtimes(filepath.Dir(target), now, now)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), packageFile+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	encoder, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = tmp.Close()
		return "", err
	}
	if _, err := encoder.Write(content); err != nil {
		_ = encoder.Close()
		_ = tmp.Close()
		return "", err
	}
	if err := encoder.Close(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	// rename keeps readers from seeing a partial package
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}
	return ref, nil
}

// Read returns the content of the package addressed by ref after checking it
// still hashes to ref.
func (d *Directory) Read(ref FileReference) ([]byte, error) {
	file, err := os.Open(d.Path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", gerrors.ErrFileReferenceNotFound, ref)
		}
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, decoder); err != nil {
		return nil, fmt.Errorf("failed to decode package %s: %w", ref, err)
	}

	content := buf.Bytes()
	if !ref.Matches(content) {
		return nil, fmt.Errorf("package %s is corrupt", ref)
	}
	return content, nil
}

// DeleteUnused removes the references that are not in use and were last
// written before now minus keepUnused. It returns the deleted references.
func (d *Directory) DeleteUnused(inUse mapset.Set[FileReference], keepUnused time.Duration, now time.Time) ([]FileReference, error) {
	present, err := d.List()
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-keepUnused)
	var deleted []FileReference
	var errs error
	for _, ref := range mapset.Sorted(present) {
		if inUse.Contains(ref) {
			continue
		}
		info, err := os.Stat(filepath.Join(d.root, ref.String()))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(d.root, ref.String())); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		deleted = append(deleted, ref)
	}
	return deleted, errs
}
