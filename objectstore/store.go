// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package objectstore provides the blob storage that transfer probes run
// against.
package objectstore // import "github.com/researchops/opsmon/objectstore"

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound is returned by Get for objects that do not exist.
var ErrNotFound = errors.New("object not found")

// Store is a flat key/value blob store. Paths use '/' as separator.
type Store interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete removes path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
}

// Open returns the store for rawURL. Supported are s3://bucket/prefix and
// file:///dir. S3 settings not expressible in the URL come from the default
// AWS configuration chain; the query parameters region, endpoint and
// path_style override them.
func Open(ctx context.Context, rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("store URL %q has no bucket", rawURL)
		}
		q := u.Query()
		return NewS3(ctx, S3Config{
			Bucket:       u.Host,
			Prefix:       strings.Trim(u.Path, "/"),
			Region:       q.Get("region"),
			Endpoint:     q.Get("endpoint"),
			UsePathStyle: q.Get("path_style") == "true",
		})
	case "file", "":
		if u.Path == "" {
			return nil, fmt.Errorf("store URL %q has no path", rawURL)
		}
		return NewFileStore(u.Path)
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}
