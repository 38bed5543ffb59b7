package writerbackends

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/option"

	"squeeze/logger"
)

// UploadToGCSWithJSON uploads content from an io.Reader to a Google Cloud
// Storage object using a base64-encoded service account key.
func UploadToGCSWithJSON(ctx context.Context, accessInfo map[string]string, objectName string, reader io.Reader) (string, error) {
	bucketName := accessInfo["bucket"]
	if bucketName == "" {
		return "", errors.New("missing required accessInfo key: bucket")
	}
	credentialsJSON, err := base64.StdEncoding.DecodeString(accessInfo["credentialsJSON"])
	if err != nil {
		return "", errors.Wrap(err, "decoding credentialsJSON")
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return "", errors.Wrap(err, "storage.NewClient")
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "image/jpeg"

	if _, err = io.Copy(wc, reader); err != nil {
		wc.Close()
		return "", errors.Wrap(err, "io.Copy")
	}
	// Close completes the upload
	if err := wc.Close(); err != nil {
		return "", errors.Wrap(err, "Writer.Close")
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", objectName, bucketName)
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
