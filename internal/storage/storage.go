// Package storage writes product and customization images to S3.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
)

// ErrEmptyObject is returned for uploads without content.
var ErrEmptyObject = errors.New("empty object")

// Store puts objects into one bucket and returns their public URLs.
type Store struct {
	client  aws.S3API
	bucket  string
	baseURL string
}

// NewStore returns a Store. baseURL is the public prefix objects are served from (a CDN or the
// bucket website); when empty the virtual-hosted S3 URL is used.
func NewStore(client aws.S3API, bucket, baseURL string) *Store {
	return &Store{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// Put uploads body under key and returns its URL. An empty contentType is sniffed from body.
func (s *Store) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", ErrEmptyObject
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete removes key from the bucket.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL of key.
func (s *Store) URL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

// ProductImagePath is products/{productID}/{color}/{filename}. Products without colors use
// "default" for the color segment.
func ProductImagePath(productID, color, filename string) string {
	c := slug.Make(color)
	if c == "" {
		c = "default"
	}
	return path.Join("products", productID, c, SanitizeFilename(filename))
}

// CustomizationPath is customized-orders/{unix millis}-{id}-{filename}. id keeps two uploads of
// the same file in the same millisecond apart.
func CustomizationPath(ts time.Time, id, filename string) string {
	return "customized-orders/" + strconv.FormatInt(ts.UnixMilli(), 10) + "-" + slug.Make(id) + "-" + SanitizeFilename(filename)
}

// SanitizeFilename slugs the base name and keeps a lower-case alphanumeric extension.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := path.Ext(name)
	base := slug.Make(strings.TrimSuffix(name, ext))
	if base == "" {
		base = "file"
	}
	ext = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, strings.TrimPrefix(ext, "."))
	if ext == "" {
		return base
	}
	return base + "." + ext
}
