package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrBucketRequired is returned when an operation is attempted without a bucket.
var ErrBucketRequired = errors.New("storage bucket is required")

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// PutOptions conveys upload destination metadata.
type PutOptions struct {
	Bucket      string
	Key         string
	ContentType string
}

// Service stores course archives in remote object storage.
type Service interface {
	PutObject(ctx context.Context, body io.Reader, opts PutOptions) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, bucket, prefix string) error
	GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// JoinKey joins key segments with "/" ignoring empty segments and stray slashes.
func JoinKey(parts ...string) string {
	var key string
	for _, p := range parts {
		p = trimSlashes(p)
		if p == "" {
			continue
		}
		if key != "" {
			key += "/"
		}
		key += p
	}
	return key
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
