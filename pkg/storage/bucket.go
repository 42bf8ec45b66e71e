package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Bucket is an object store addressed by opaque references.
type Bucket interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PublicURL(ctx context.Context, reference string) (string, error)
	Delete(ctx context.Context, reference string) error
}

// LocalBucket stores objects on disk and hands out signed download links.
type LocalBucket struct {
	files       *LocalStorage
	signer      *SignedURLSigner
	downloadURL string
}

// NewLocalBucket wires a filesystem store with a signer. downloadURL is the
// route that redeems tokens, e.g. "/api/v1/proofs/download".
func NewLocalBucket(files *LocalStorage, signer *SignedURLSigner, downloadURL string) *LocalBucket {
	return &LocalBucket{files: files, signer: signer, downloadURL: downloadURL}
}

// Upload writes data under key and returns the key as reference.
func (b *LocalBucket) Upload(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.files.Save(key, data)
}

// PublicURL returns an expiring download link for reference.
func (b *LocalBucket) PublicURL(_ context.Context, reference string) (string, error) {
	if reference == "" {
		return "", fmt.Errorf("reference required")
	}
	token, _, err := b.signer.Generate(reference, reference)
	if err != nil {
		return "", err
	}
	return b.downloadURL + "?token=" + url.QueryEscape(token), nil
}

// Delete removes the object behind reference.
func (b *LocalBucket) Delete(ctx context.Context, reference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.files.Delete(reference)
}

// Resolve validates a download token and returns the on-disk path it grants.
func (b *LocalBucket) Resolve(token string) (string, error) {
	_, rel, _, err := b.signer.Parse(token, false)
	if err != nil {
		return "", err
	}
	path := b.files.Path(rel)
	if path == "" {
		return "", ErrInvalidPath
	}
	return path, nil
}

// ObjectKey builds "<folder>/<name>" keys without duplicate separators.
func ObjectKey(folder, name string) string {
	return strings.Trim(folder, "/") + "/" + strings.TrimLeft(name, "/")
}
