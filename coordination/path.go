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
	"fmt"
	gopath "path"
	"strings"
)

// Join builds an absolute path from segments
func Join(segments ...string) string {
	return gopath.Clean("/" + gopath.Join(segments...))
}

// Child returns the name of the direct child of parent on the way to descendant.
// The second result is false when descendant is not below parent.
func Child(parent, descendant string) (string, bool) {
	prefix := strings.TrimSuffix(parent, "/") + "/"
	if !strings.HasPrefix(descendant, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(descendant, prefix)
	if rest == "" {
		return "", false
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

// Covers reports whether path is root itself or one of its descendants
func Covers(root, path string) bool {
	if root == "/" || path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, "/")+"/")
}

// ValidatePath checks that p is a clean absolute path
func ValidatePath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("coordination: path %q must be absolute", p)
	}
	if gopath.Clean(p) != p {
		return fmt.Errorf("coordination: path %q is not clean", p)
	}
	return nil
}
