package installer

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/logger"
	"github.com/oshokin/steam-launcher/internal/service/fetch"

	// Ensure SHA256 is registered for go-update checksum verification.
	_ "crypto/sha256"
)

// relocateAttempts bounds retries when concurrent runs race on the same target.
const relocateAttempts = 3

// relocate places a verified copy of source at target. A target that already
// holds the same bytes is left untouched.
func relocate(ctx context.Context, source, target string) error {
	sourceDigest, err := fetch.FileDigest(source)
	if err != nil {
		return fmt.Errorf("digest %s: %w", source, err)
	}

	if same, _ := hasDigest(target, sourceDigest); same {
		logger.DebugKV(ctx, "Bootstrap bundle already in place", "path", target)

		return nil
	}

	checksum, err := hex.DecodeString(sourceDigest)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = apply(source, target, checksum)
		if err == nil {
			break
		}

		// A concurrent run may have renamed the same bytes into place first.
		if same, _ := hasDigest(target, sourceDigest); same {
			return nil
		}

		if attempt == relocateAttempts {
			return fmt.Errorf("apply %s: %w", target, err)
		}

		logger.DebugKV(ctx, "Relocation failed, retrying", "path", target, "attempt", attempt, "error", err)
	}

	logger.InfoKV(ctx, "Bootstrap bundle relocated", "path", target)

	return nil
}

// apply replaces target with the contents of source through go-update.
func apply(source, target string, checksum []byte) error {
	if err := ensureFile(target); err != nil {
		return err
	}

	file, err := os.Open(filepath.Clean(source))
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	return goupdate.Apply(file, goupdate.Options{
		TargetPath: target,
		TargetMode: config.DefaultFilePermissions,
		Checksum:   checksum,
		Hash:       crypto.SHA256,
	})
}

// ensureFile creates an empty target so the updater has something to replace.
func ensureFile(path string) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}

		return err
	}

	return file.Close()
}

func hasDigest(path, digest string) (bool, error) {
	actual, err := fetch.FileDigest(path)
	if err != nil {
		return false, err
	}

	return actual == digest, nil
}
