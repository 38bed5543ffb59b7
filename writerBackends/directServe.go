package writerbackends

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"squeeze/logger"
)

// UploadToDirectServe writes content below baseDir, which the HTTP server
// exposes at /files/. The returned location is that URL path.
func UploadToDirectServe(ctx context.Context, accessInfo map[string]string, objectName string, reader io.Reader) (string, error) {
	baseDir := accessInfo["baseDir"] // Base directory where files are served from
	if baseDir == "" {
		return "", errors.New("missing required accessInfo key: baseDir")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := filepath.Clean(filepath.FromSlash(objectName))
	if rel == "." || filepath.IsAbs(rel) || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", errors.Newf("invalid object name %q", objectName)
	}
	fullPath := filepath.Join(baseDir, rel)

	// Ensure the target directory exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create directories")
	}

	// Write to a temp file first so /files/ never serves a partial image
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", errors.Wrapf(err, "failed to create file for %s", fullPath)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "failed to write to file %s", fullPath)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to close file %s", fullPath)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to set permissions on %s", fullPath)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", errors.Wrapf(err, "failed to move file into %s", fullPath)
	}

	logger.Infof("Successfully saved '%s' to '%s'", objectName, fullPath)
	return "/files/" + filepath.ToSlash(rel), nil
}
