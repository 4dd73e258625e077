// Package storage uploads credential documents to content-addressed storage.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
)

// Uploader stores document bytes and returns a content-addressed URI.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

const ipfsScheme = "ipfs://"

// IPFSUploader pins documents through an IPFS HTTP API.
type IPFSUploader struct {
	sh *shell.Shell
}

// NewIPFSUploader talks to the IPFS API at apiURL. timeout bounds each HTTP
// request made by the shell.
func NewIPFSUploader(apiURL string, timeout time.Duration) *IPFSUploader {
	client := &http.Client{Timeout: timeout}
	return &IPFSUploader{sh: shell.NewShellWithClient(apiURL, client)}
}

func (u *IPFSUploader) Upload(ctx context.Context, data []byte, _ string) (string, error) {
	type result struct {
		cid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		cid, err := u.sh.Add(bytes.NewReader(data), shell.Pin(true))
		done <- result{cid: cid, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("ipfs add: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("ipfs add: %w", r.err)
		}
		return ipfsScheme + r.cid, nil
	}
}

// Ping reports whether the IPFS API answers.
func (u *IPFSUploader) Ping(_ context.Context) error {
	if !u.sh.IsUp() {
		return errors.New("ipfs api unreachable")
	}
	return nil
}

// MemoryUploader keeps documents in process, addressed by their SHA-256.
type MemoryUploader struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	// Fail, when set, is returned by every Upload.
	Fail error
}

func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{blobs: make(map[string][]byte)}
}

func (u *MemoryUploader) Upload(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if u.Fail != nil {
		return "", u.Fail
	}
	sum := sha256.Sum256(data)
	addr := "sha256-" + hex.EncodeToString(sum[:])

	u.mu.Lock()
	u.blobs[addr] = append([]byte(nil), data...)
	u.mu.Unlock()
	return "mem://" + addr, nil
}

// Get returns the stored bytes for a URI produced by Upload.
func (u *MemoryUploader) Get(uri string) ([]byte, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	b, ok := u.blobs[strings.TrimPrefix(uri, "mem://")]
	return b, ok
}

// Len reports how many distinct documents are stored.
func (u *MemoryUploader) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.blobs)
}
