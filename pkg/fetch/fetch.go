// Package fetch resolves compiler inputs — spec JSON, catalog JSON,
// ffprobe JSON — from local://, http(s)://, or s3:// URIs. It is a
// slimmed, read-only cousin of the teacher's pkg/storage: the compiler
// never writes inputs back, so Fetcher only exposes Get and Exists.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/vidlang/dve/pkg/pkgerr"
	"github.com/vidlang/dve/pkg/security"
)

// AllowedSchemes is the whitelist of URI schemes Dispatcher.Get will dispatch on.
var AllowedSchemes = []string{"local", "file", "http", "https", "s3"}

// Fetcher retrieves a compiler input identified by a URI.
type Fetcher interface {
	// Get returns a reader over the input's bytes.
	Get(ctx context.Context, uri string) (io.ReadCloser, error)
	// Exists reports whether uri resolves to something fetchable.
	Exists(ctx context.Context, uri string) (bool, error)
}

// ParseURI splits a URI into scheme and backend-specific path.
func ParseURI(uri string) (scheme, path string, err error) {
	if uri == "" {
		return "", "", pkgerr.BadSpecf("fetch: URI cannot be empty")
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", pkgerr.BadSpecf("fetch: invalid URI %q: %v", uri, err)
	}
	if parsed.Scheme == "" {
		return "", "", pkgerr.BadSpecf("fetch: URI must have a scheme (local://, http(s)://, s3://): %q", uri)
	}
	if parsed.Scheme == "local" || parsed.Scheme == "file" {
		return parsed.Scheme, parsed.Path, nil
	}
	path = parsed.Host
	if parsed.Path != "" {
		path += parsed.Path
	}
	return parsed.Scheme, path, nil
}

// IsAllowedScheme reports whether scheme is in AllowedSchemes.
func IsAllowedScheme(scheme string) bool {
	for _, s := range AllowedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// Dispatcher routes Get/Exists to the backend matching a URI's scheme.
// It is the Fetcher implementation cmd/dve wires up by default.
type Dispatcher struct {
	Local *LocalFetcher
	HTTP  *HTTPFetcher
	S3    *S3Fetcher
}

// NewDispatcher builds a Dispatcher with default-constructed backends.
// The S3 backend loads AWS config lazily on first s3:// fetch.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{Local: &LocalFetcher{}, HTTP: NewHTTPFetcher()}
}

func (d *Dispatcher) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	scheme, _, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if !IsAllowedScheme(scheme) {
		return nil, pkgerr.BadSpecf("fetch: scheme %q is not allowed", scheme)
	}
	switch scheme {
	case "local", "file":
		return d.Local.Get(ctx, uri)
	case "http", "https":
		return d.HTTP.Get(ctx, uri)
	case "s3":
		s3f, err := d.s3Fetcher(ctx)
		if err != nil {
			return nil, err
		}
		return s3f.Get(ctx, uri)
	default:
		return nil, pkgerr.BadSpecf("fetch: unhandled scheme %q", scheme)
	}
}

func (d *Dispatcher) Exists(ctx context.Context, uri string) (bool, error) {
	scheme, _, err := ParseURI(uri)
	if err != nil {
		return false, err
	}
	switch scheme {
	case "local", "file":
		return d.Local.Exists(ctx, uri)
	case "http", "https":
		return d.HTTP.Exists(ctx, uri)
	case "s3":
		s3f, err := d.s3Fetcher(ctx)
		if err != nil {
			return false, err
		}
		return s3f.Exists(ctx, uri)
	default:
		return false, pkgerr.BadSpecf("fetch: unhandled scheme %q", scheme)
	}
}

func (d *Dispatcher) s3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	if d.S3 != nil {
		return d.S3, nil
	}
	f, err := NewS3Fetcher(ctx)
	if err != nil {
		return nil, err
	}
	d.S3 = f
	return f, nil
}

// LocalFetcher reads inputs from the local filesystem via local:// or
// file:// URIs.
type LocalFetcher struct{}

func (LocalFetcher) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	scheme, path, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if scheme != "local" && scheme != "file" {
		return nil, pkgerr.BadSpecf("fetch: local fetcher only supports local://, file:// URIs, got %s://", scheme)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fetch: opening %s: %w", path, err)
	}
	return f, nil
}

func (LocalFetcher) Exists(ctx context.Context, uri string) (bool, error) {
	_, path, err := ParseURI(uri)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HTTPFetcher fetches inputs over http(s), SSRF-guarded via pkg/security
// before every request.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with a default client.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{}}
}

func (h *HTTPFetcher) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := security.ValidateHTTPURI(uri); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building request for %s: %w", uri, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, pkgerr.ExternalToolFailuref(err, "fetch: GET %s", uri)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, pkgerr.ExternalToolFailuref(fmt.Errorf("status %d", resp.StatusCode), "fetch: GET %s", uri)
	}
	return resp.Body, nil
}

func (h *HTTPFetcher) Exists(ctx context.Context, uri string) (bool, error) {
	if err := security.ValidateHTTPURI(uri); err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return false, fmt.Errorf("fetch: building request for %s: %w", uri, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false, pkgerr.ExternalToolFailuref(err, "fetch: HEAD %s", uri)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// S3Fetcher fetches inputs from Amazon S3 (or an S3-compatible store)
// via s3://bucket/key URIs.
type S3Fetcher struct {
	client *s3.Client
}

// NewS3Fetcher loads the default AWS credential chain (env, config
// files, IAM role) and returns an S3Fetcher.
func NewS3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: loading AWS config: %w", err)
	}
	return &S3Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

// NewS3FetcherWithClient wraps an existing S3 client, for tests and
// S3-compatible endpoints.
func NewS3FetcherWithClient(client *s3.Client) *S3Fetcher {
	return &S3Fetcher{client: client}
}

func parseS3URI(uri string) (bucket, key string, err error) {
	scheme, path, err := ParseURI(uri)
	if err != nil {
		return "", "", err
	}
	if scheme != "s3" {
		return "", "", pkgerr.BadSpecf("fetch: S3 fetcher only supports s3:// URIs, got %s://", scheme)
	}
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 1 || parts[0] == "" {
		return "", "", pkgerr.BadSpecf("fetch: invalid S3 URI %q: missing bucket", uri)
	}
	bucket = parts[0]
	if len(parts) > 1 {
		key = parts[1]
	}
	if key == "" {
		return "", "", pkgerr.BadSpecf("fetch: invalid S3 URI %q: missing object key", uri)
	}
	return bucket, key, nil
}

func (s *S3Fetcher) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, pkgerr.ExternalToolFailuref(err, "fetch: s3 GetObject %s", uri)
	}
	return out.Body, nil
}

func (s *S3Fetcher) Exists(ctx context.Context, uri string) (bool, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}
	return false, pkgerr.ExternalToolFailuref(err, "fetch: s3 HeadObject %s", uri)
}
