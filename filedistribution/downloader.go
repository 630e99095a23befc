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
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowchartsman/retry"

	"github.com/tochemey/configserver/log"
)

// Downloader fetches packages that are missing locally
type Downloader interface {
	// GetFile returns the local path of ref, downloading it when needed.
	// The second result is false when the package could not be obtained.
	GetFile(ctx context.Context, ref FileReference) (string, bool)
}

// handlerPrefix is the URL path prefix under which packages are served
const handlerPrefix = "/filedistribution/v1/"

const (
	defaultDownloadAttempts = 3
	defaultDownloadTimeout  = 30 * time.Second
	maxPackageSize          = 256 << 20
)

// PeerDownloader fetches packages from the other config servers over HTTP
// and stores them in the local Directory.
type PeerDownloader struct {
	directory *Directory
	peers     []string
	client    *http.Client
	attempts  int
	logger    log.Logger
}

var _ Downloader = (*PeerDownloader)(nil)

// DownloaderOption configures a PeerDownloader
type DownloaderOption func(*PeerDownloader)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *PeerDownloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithAttempts sets how many rounds over all peers are made
func WithAttempts(attempts int) DownloaderOption {
	return func(d *PeerDownloader) {
		if attempts > 0 {
			d.attempts = attempts
		}
	}
}

// WithDownloaderLogger sets the logger
func WithDownloaderLogger(logger log.Logger) DownloaderOption {
	return func(d *PeerDownloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewPeerDownloader creates a downloader asking peers, given as host:port, in order
func NewPeerDownloader(directory *Directory, peers []string, opts ...DownloaderOption) *PeerDownloader {
	downloader := &PeerDownloader{
		directory: directory,
		peers:     peers,
		client:    &http.Client{Timeout: defaultDownloadTimeout},
		attempts:  defaultDownloadAttempts,
		logger:    log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(downloader)
	}
	return downloader
}

// GetFile implements Downloader
func (d *PeerDownloader) GetFile(ctx context.Context, ref FileReference) (string, bool) {
	exists, err := d.directory.Has(ref)
	if err == nil && exists {
		return d.directory.Path(ref), true
	}

	if len(d.peers) == 0 {
		return "", false
	}

	var content []byte
	retrier := retry.NewRetrier(d.attempts, 100*time.Millisecond, 2*time.Second)
	err = retrier.RunContext(ctx, func(ctx context.Context) error {
		var lastErr error
		for _, peer := range d.peers {
			body, err := d.fetch(ctx, peer, ref)
			if err != nil {
				d.logger.Debugf("failed to fetch %s from %s: %v", ref, peer, err)
				lastErr = err
				continue
			}
			content = body
			return nil
		}
		return lastErr
	})
	if err != nil {
		d.logger.Warnf("failed to download file reference %s: %v", ref, err)
		return "", false
	}

	if _, err := d.directory.Write(content); err != nil {
		d.logger.Warnf("failed to store file reference %s: %v", ref, err)
		return "", false
	}
	return d.directory.Path(ref), true
}

func (d *PeerDownloader) fetch(ctx context.Context, peer string, ref FileReference) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+peer+handlerPrefix+ref.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxPackageSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > maxPackageSize {
		return nil, fmt.Errorf("package %s exceeds %d bytes", ref, maxPackageSize)
	}
	if !ref.Matches(content) {
		return nil, fmt.Errorf("package %s from %s does not match its reference", ref, peer)
	}
	return content, nil
}
