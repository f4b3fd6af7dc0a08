package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var archiveBody = []byte("pretend this is steam_1.0.0.78.tar.gz")

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

func newFetcher(t *testing.T, opts ...Option) (*Fetcher, string) {
	t.Helper()

	dir := t.TempDir()
	base := []Option{WithDownloadDir(dir), WithRetryInterval(time.Millisecond), WithRetries(2)}

	return New(append(base, opts...)...), dir
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestFetchAndVerify_Success downloads into a process-scoped temp file.
func TestFetchAndVerify_Success(t *testing.T) {
	t.Parallel()

	var agent atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write(archiveBody)
	}))
	defer server.Close()

	fetcher, dir := newFetcher(t)

	localPath, err := fetcher.FetchAndVerify(context.Background(), server.URL+"/steam_1.0.0.78.tar.gz", digestOf(archiveBody))
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(localPath))
	require.Contains(t, filepath.Base(localPath), fmt.Sprintf(".steam_1.0.0.78.tar.gz.%d.", os.Getpid()))

	require.Contains(t, agent.Load(), "steam-launcher/")

	contents, err := os.ReadFile(localPath)
	require.NoError(t, err)
	require.Equal(t, archiveBody, contents)
}

// TestFetchAndVerify_CaseInsensitiveDigest accepts an upper-case expected digest.
func TestFetchAndVerify_CaseInsensitiveDigest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archiveBody)
	}))
	defer server.Close()

	fetcher, _ := newFetcher(t)

	_, err := fetcher.FetchAndVerify(context.Background(), server.URL+"/a.tar.gz", " "+strings.ToUpper(digestOf(archiveBody))+"\n")
	require.NoError(t, err)
}

// TestFetchAndVerify_Mismatch removes the download and reports both digests.
func TestFetchAndVerify_Mismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Server-provided checksums are never consulted.
		w.Header().Set("X-Checksum-Sha256", digestOf([]byte("other")))
		_, _ = w.Write(archiveBody)
	}))
	defer server.Close()

	fetcher, dir := newFetcher(t)
	expected := digestOf([]byte("other"))

	_, err := fetcher.FetchAndVerify(context.Background(), server.URL+"/a.tar.gz", expected)
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.NotErrorIs(t, err, ErrFetchFailed)

	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, expected, verr.Expected)
	require.Equal(t, digestOf(archiveBody), verr.Actual)
	require.Contains(t, err.Error(), verr.Actual)

	requireEmptyDir(t, dir)
}

// TestFetchAndVerify_SingleByteFlip rejects a digest off by one character.
func TestFetchAndVerify_SingleByteFlip(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archiveBody)
	}))
	defer server.Close()

	fetcher, _ := newFetcher(t)

	digest := []byte(digestOf(archiveBody))
	if digest[0] == '0' {
		digest[0] = '1'
	} else {
		digest[0] = '0'
	}

	_, err := fetcher.FetchAndVerify(context.Background(), server.URL+"/a.tar.gz", string(digest))
	require.ErrorIs(t, err, ErrVerificationFailed)
}

// TestFetchAndVerify_ClientErrorIsPermanent does not retry a 404.
func TestFetchAndVerify_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher, dir := newFetcher(t)

	_, err := fetcher.FetchAndVerify(context.Background(), server.URL+"/a.tar.gz", digestOf(archiveBody))
	require.ErrorIs(t, err, ErrFetchFailed)
	require.True(t, IsFetchFailure(err))
	require.Equal(t, int32(1), hits.Load())
	requireEmptyDir(t, dir)
}

// TestFetchAndVerify_RetriesServerErrors recovers from a transient 503.
func TestFetchAndVerify_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			// Partial body before failing must not end up in the verified file.
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("garbage"))

			return
		}

		_, _ = w.Write(archiveBody)
	}))
	defer server.Close()

	fetcher, _ := newFetcher(t)

	localPath, err := fetcher.FetchAndVerify(context.Background(), server.URL+"/a.tar.gz", digestOf(archiveBody))
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())

	contents, err := os.ReadFile(localPath)
	require.NoError(t, err)
	require.Equal(t, archiveBody, contents)
}

// TestFetchAndVerify_Timeout surfaces a hung server as a fetch failure.
func TestFetchAndVerify_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher, dir := newFetcher(t, WithTimeout(50*time.Millisecond), WithRetries(0))

	_, err := fetcher.FetchAndVerify(context.Background(), server.URL+"/a.tar.gz", digestOf(archiveBody))
	require.ErrorIs(t, err, ErrFetchFailed)
	requireEmptyDir(t, dir)
}

// TestFetchAndVerify_EmptyURL is rejected up front.
func TestFetchAndVerify_EmptyURL(t *testing.T) {
	t.Parallel()

	fetcher, _ := newFetcher(t)

	_, err := fetcher.FetchAndVerify(context.Background(), "", digestOf(archiveBody))
	require.ErrorIs(t, err, ErrFetchFailed)
}

// TestFileDigest hashes a file on disk.
func TestFileDigest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive")
	require.NoError(t, os.WriteFile(path, archiveBody, 0o600))

	digest, err := FileDigest(path)
	require.NoError(t, err)
	require.Equal(t, digestOf(archiveBody), digest)

	_, err = FileDigest(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
