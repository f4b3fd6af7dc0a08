package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/service/desktop"
)

const releaseVersion = "1.0.0.78"

type tarEntry struct {
	name string
	body string
	mode int64
	dir  bool
}

func writeTar(t *testing.T, w io.Writer, entries []tarEntry) {
	t.Helper()

	tw := tar.NewWriter(w)

	for _, e := range entries {
		header := &tar.Header{
			Name:     e.name,
			Mode:     e.mode,
			Size:     int64(len(e.body)),
			Typeflag: tar.TypeReg,
		}

		if e.dir {
			header.Typeflag = tar.TypeDir
			header.Size = 0
		}

		require.NoError(t, tw.WriteHeader(header))

		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
}

// bootstrapBundle returns an xz tarball holding a minimal client.
func bootstrapBundle(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)

	writeTar(t, xw, []tarEntry{
		{name: "steam.sh", body: "#!/bin/sh\nexit 0\n", mode: 0o755},
		{name: "ubuntu12_32/", dir: true, mode: 0o755},
		{name: "ubuntu12_32/steam", body: "ELF", mode: 0o755},
		{name: "steam_subscriber_agreement.txt", body: "agreement", mode: 0o644},
	})
	require.NoError(t, xw.Close())

	return buf.Bytes()
}

// releaseArchive returns a gzip tarball laid out like the published client archive.
func releaseArchive(t *testing.T) []byte {
	t.Helper()

	entries := []tarEntry{
		{name: "steam-launcher/", dir: true, mode: 0o755},
		{name: "steam-launcher/bootstraplinux_ubuntu12_32.tar.xz", body: string(bootstrapBundle(t)), mode: 0o644},
		{name: "steam-launcher/steam.desktop", body: "[Desktop Entry]\nName=Steam\nExec=/usr/bin/steam %U\n", mode: 0o644},
		{name: "steam-launcher/Makefile", body: "install:\n", mode: 0o644},
	}

	for _, size := range desktop.IconSizes() {
		entries = append(entries, tarEntry{
			name: "steam-launcher/icons/" + strconv.Itoa(size) + "/steam.png",
			body: "png-" + strconv.Itoa(size),
			mode: 0o644,
		})
	}

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	writeTar(t, gz, entries)
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// archiveServer serves body at the release path and counts the requests.
func archiveServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/steam_"+releaseVersion+".tar.gz", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)

		_, _ = w.Write(body)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, &hits
}

func newRelease(serverURL, sha string) *config.Release {
	return &config.Release{
		Version: releaseVersion,
		URL:     serverURL + "/steam_{{.Version}}.tar.gz",
		SHA256:  sha,
	}
}

func newEnvironment(t *testing.T) *config.Environment {
	t.Helper()

	environment, err := config.ParseEnvironment(map[string]string{"HOME": t.TempDir()})
	require.NoError(t, err)

	return environment
}

// recordingDispatcher stands in for execve.
type recordingDispatcher struct {
	calls   atomic.Int32
	entry   atomic.Value
	environ atomic.Value
}

func (d *recordingDispatcher) Dispatch(_ context.Context, entry string, _, environ []string) error {
	d.calls.Add(1)
	d.entry.Store(entry)
	d.environ.Store(environ)

	return nil
}

func partialDownloads(t *testing.T, dir string) []string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, ".steam_*.part"))
	require.NoError(t, err)

	return matches
}
