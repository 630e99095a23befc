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

// Package filedistribution moves application packages between config servers.
//
// A package is addressed by a FileReference derived from its content. Every
// server keeps the packages it knows in a local Directory and fetches the
// missing ones from its peers.
package filedistribution

import (
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/zeebo/blake3"
)

// referenceLength is the number of hex characters of a FileReference
const referenceLength = 32

var referencePattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// domainKey separates package hashes from any other use of blake3 on the same bytes
var domainKey = [32]byte{
	'c', 'o', 'n', 'f', 'i', 'g', 's', 'e', 'r', 'v', 'e', 'r', '.',
	'p', 'a', 'c', 'k', 'a', 'g', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// FileReference is the content address of an application package
type FileReference string

// NewFileReference computes the reference of content
func NewFileReference(content []byte) FileReference {
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		// the key has the fixed size NewKeyed expects
		panic(err)
	}
	_, _ = hasher.Write(content)
	sum := hasher.Sum(nil)
	return FileReference(hex.EncodeToString(sum[:referenceLength/2]))
}

// ParseFileReference validates value
func ParseFileReference(value string) (FileReference, error) {
	if !referencePattern.MatchString(value) {
		return "", fmt.Errorf("invalid file reference %q", value)
	}
	return FileReference(value), nil
}

// String returns the reference text
func (r FileReference) String() string {
	return string(r)
}

// Matches reports whether content hashes to r
func (r FileReference) Matches(content []byte) bool {
	return NewFileReference(content) == r
}
