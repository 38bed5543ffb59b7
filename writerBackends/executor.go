package writerbackends

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
)

// OutputFilename is the fixed name of every compressed result.
const OutputFilename = "compressed_image.jpg"

// ObjectName builds the backend key for a result: <folder>/<digest>_compressed_image.jpg.
func ObjectName(folder, digest string) string {
	name := digest + "_" + OutputFilename
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// WriteImage delivers reader to the configured backend under objectName and
// returns the location it was written to.
func WriteImage(ctx context.Context, backendType string, accessInfo map[string]string, objectName string, reader io.Reader) (string, error) {
	// we switch based on the backend type: directServe, s3, gcs, sftp, oss
	switch backendType {
	case "directServe":
		loc, err := UploadToDirectServe(ctx, accessInfo, objectName, reader)
		if err != nil {
			return "", errors.Wrap(err, "failed to upload to direct serve")
		}
		return loc, nil
	case "s3":
		loc, err := UploadToS3WithCreds(ctx, accessInfo, objectName, reader)
		if err != nil {
			return "", errors.Wrap(err, "failed to upload to S3")
		}
		return loc, nil
	case "gcs":
		loc, err := UploadToGCSWithJSON(ctx, accessInfo, objectName, reader)
		if err != nil {
			return "", errors.Wrap(err, "failed to upload to GCS")
		}
		return loc, nil
	case "sftp":
		loc, err := UploadToSFTPWithCreds(ctx, accessInfo, objectName, reader)
		if err != nil {
			return "", errors.Wrap(err, "failed to upload to SFTP")
		}
		return loc, nil
	case "oss":
		loc, err := UploadToOSS(ctx, accessInfo, objectName, reader)
		if err != nil {
			return "", errors.Wrap(err, "failed to upload to OSS")
		}
		return loc, nil
	default:
		return "", errors.Newf("unknown backend type: %s", backendType)
	}
}
