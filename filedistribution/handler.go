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
	"errors"
	"net/http"
	"strings"

	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/log"
)

// Handler serves the local Directory to peers
type Handler struct {
	directory *Directory
	logger    log.Logger
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a Handler
func NewHandler(directory *Directory, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Handler{directory: directory, logger: logger}
}

// Pattern is the route the Handler must be mounted on
func (h *Handler) Pattern() string {
	return handlerPrefix
}

// ServeHTTP returns the uncompressed package named by the last path segment
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ref, err := ParseFileReference(strings.TrimPrefix(r.URL.Path, handlerPrefix))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := h.directory.Read(ref)
	if err != nil {
		if errors.Is(err, gerrors.ErrFileReferenceNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Errorf("failed to serve file reference %s: %v", ref, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}
