package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/fsutil"
	"github.com/oshokin/steam-launcher/internal/logger"
	"github.com/oshokin/steam-launcher/internal/version"
)

const (
	// defaultRetryInterval is the first pause between attempts.
	defaultRetryInterval = 1 * time.Second
	// maxRetryInterval caps the pause between attempts.
	maxRetryInterval = 10 * time.Second
	// copyBufferSize is the chunk size used while streaming to disk.
	copyBufferSize = 256 * 1024
)

// Fetcher downloads and verifies archives.
type Fetcher struct {
	// client performs the HTTP requests; its Timeout bounds each attempt.
	client *http.Client
	// retries is how many transient failures are retried.
	retries uint64
	// retryInterval is the first backoff interval.
	retryInterval time.Duration
	// dir receives temporary downloads.
	dir string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds every download attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// WithRetries sets how many transient failures are retried.
func WithRetries(retries uint64) Option {
	return func(f *Fetcher) {
		f.retries = retries
	}
}

// WithRetryInterval sets the first pause between attempts.
func WithRetryInterval(interval time.Duration) Option {
	return func(f *Fetcher) {
		if interval > 0 {
			f.retryInterval = interval
		}
	}
}

// WithHTTPClient replaces the HTTP client, keeping its own timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithDownloadDir sets where temporary downloads are created.
func WithDownloadDir(dir string) Option {
	return func(f *Fetcher) {
		if dir != "" {
			f.dir = dir
		}
	}
}

// New creates a Fetcher with the configured defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:        &http.Client{Timeout: config.DefaultFetchTimeout},
		retries:       config.DefaultFetchRetries,
		retryInterval: defaultRetryInterval,
		dir:           os.TempDir(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// FetchAndVerify downloads url and returns the path of a local copy whose
// SHA-256 equals expectedDigest. The caller owns the returned file.
func (f *Fetcher) FetchAndVerify(ctx context.Context, url, expectedDigest string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, errEmptyURL)
	}

	ctx = logger.WithName(ctx, "fetch")

	file, err := os.CreateTemp(f.dir, tempPattern(url))
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", ErrFetchFailed, err)
	}

	localPath := file.Name()

	actual, err := f.download(ctx, url, file)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}

	if err != nil {
		_ = fsutil.RemoveIfExists(localPath)

		return "", fmt.Errorf("%w: %s: %w", ErrFetchFailed, url, err)
	}

	expected := normalizeDigest(expectedDigest)
	if actual != expected {
		if removeErr := fsutil.RemoveIfExists(localPath); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove rejected download", "path", localPath, "error", removeErr)
		}

		return "", &VerificationError{URL: url, Expected: expected, Actual: actual}
	}

	logger.InfoKV(ctx, "Archive verified", "url", url, "sha256", actual)

	return localPath, nil
}

// download writes the body of url into file, retrying transient failures,
// and returns the hex digest of what was written.
func (f *Fetcher) download(ctx context.Context, url string, file *os.File) (string, error) {
	var (
		hasher = sha256.New()
		buffer = make([]byte, copyBufferSize)
	)

	operation := func() error {
		hasher.Reset()

		if err := rewind(file); err != nil {
			return backoff.Permanent(err)
		}

		return f.downloadOnce(ctx, url, io.MultiWriter(file, hasher), buffer)
	}

	notify := func(err error, next time.Duration) {
		logger.WarnKV(ctx, "Download failed, retrying", "url", url, "retry_in", next, "error", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.retryInterval
	policy.MaxInterval = maxRetryInterval

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, f.retries), ctx), notify)
	if err != nil {
		return "", err
	}

	if err = file.Sync(); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// downloadOnce performs a single GET. Client errors are permanent; server
// errors and transport failures may be retried.
func (f *Fetcher) downloadOnce(ctx context.Context, url string, dst io.Writer, buffer []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return backoff.Permanent(err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	logger.InfoKV(ctx, "Downloading archive", "url", url)

	response, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%s: %w", response.Status, errBadHTTPStatus)
		if response.StatusCode >= http.StatusInternalServerError || response.StatusCode == http.StatusTooManyRequests {
			return statusErr
		}

		return backoff.Permanent(statusErr)
	}

	if _, err = io.CopyBuffer(dst, response.Body, buffer); err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	return nil
}

// FileDigest returns the hex SHA-256 of the file at path.
func FileDigest(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	return readerDigest(file, sha256.New())
}

func readerDigest(r io.Reader, hasher hash.Hash) (string, error) {
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// rewind truncates file so a retry starts from an empty download.
func rewind(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}

	_, err := file.Seek(0, io.SeekStart)

	return err
}

// tempPattern names downloads after the archive and the current process.
func tempPattern(url string) string {
	base := path.Base(strings.SplitN(url, "?", 2)[0])
	if base == "." || base == "/" || base == "" {
		base = "download"
	}

	return fmt.Sprintf(".%s.%d.*.part", base, os.Getpid())
}

func normalizeDigest(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}

// IsFetchFailure reports whether err is a network or I/O failure of a download.
func IsFetchFailure(err error) bool {
	return errors.Is(err, ErrFetchFailed)
}
