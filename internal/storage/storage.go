// Package storage resolves (session token, file name) pairs to objects in the
// upload bucket and downloads them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"traitor/internal/apperr"
)

const (
	objectPrefix   = "files"
	maxNameLength  = 255
	defaultMaxSize = 10 << 20 // 10 MB
)

// ErrNotFound is returned by backends when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// Backend opens objects by their full path inside the bucket.
type Backend interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Gateway downloads uploaded files through a Backend.
type Gateway struct {
	backend  Backend
	maxBytes int64
}

// NewGateway builds a Gateway. A non-positive maxBytes uses a 10 MB limit.
func NewGateway(backend Backend, maxBytes int64) *Gateway {
	if maxBytes <= 0 {
		maxBytes = defaultMaxSize
	}
	return &Gateway{backend: backend, maxBytes: maxBytes}
}

// ObjectPath returns files/{sessionToken}/{fileName} after checking that
// neither component can escape its path segment.
func ObjectPath(sessionToken, fileName string) (string, error) {
	if err := checkComponent("session_token", sessionToken); err != nil {
		return "", err
	}
	if err := checkComponent("file_name", fileName); err != nil {
		return "", err
	}
	return objectPrefix + "/" + sessionToken + "/" + fileName, nil
}

func checkComponent(field, value string) error {
	const op = "object path"
	switch {
	case strings.TrimSpace(value) == "":
		return apperr.Errorf(apperr.Validation, op, "%s is required", field)
	case value == "." || value == "..":
		return apperr.Errorf(apperr.Validation, op, "%s %q is not allowed", field, value)
	case strings.ContainsAny(value, `/\`):
		return apperr.Errorf(apperr.Validation, op, "%s must not contain path separators", field)
	case len(value) > maxNameLength:
		return apperr.Errorf(apperr.Validation, op, "%s exceeds %d bytes", field, maxNameLength)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return apperr.Errorf(apperr.Validation, op, "%s must not contain control characters", field)
		}
	}
	return nil
}

// Fetch downloads the whole object stored for the session token and file name.
func (g *Gateway) Fetch(ctx context.Context, sessionToken, fileName string) ([]byte, error) {
	path, err := ObjectPath(sessionToken, fileName)
	if err != nil {
		return nil, err
	}
	rc, err := g.backend.Open(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.E(apperr.StorageNotFound, "fetch "+path, err)
		}
		return nil, apperr.E(apperr.StorageUnavailable, "fetch "+path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, g.maxBytes+1))
	if err != nil {
		return nil, apperr.E(apperr.StorageUnavailable, "read "+path, err)
	}
	if int64(len(data)) > g.maxBytes {
		return nil, apperr.E(apperr.Validation, "read "+path,
			fmt.Errorf("object exceeds %d bytes", g.maxBytes))
	}
	return data, nil
}
