// Package archive reads historical governance data out of object storage.
// Archived tenants keep their proposals, votes, and non-voter snapshots as
// gzipped NDJSON objects; this package fetches and normalizes them into the
// same payload shape the live store produces.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client wraps the object store holding archived governance exports.
type Client struct {
	mc     *minio.Client
	bucket string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func New(ctx context.Context, opts Options) (*Client, error) {
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := mc.BucketExists(pingCtx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("archive bucket check: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("archive bucket %q does not exist", opts.Bucket)
	}

	return &Client{mc: mc, bucket: opts.Bucket}, nil
}

// fetchObject streams one archive object. A missing object is not an
// error: archives are sparse, and absence means "no archived data".
func (c *Client) fetchObject(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == 404
	}
	return false
}
