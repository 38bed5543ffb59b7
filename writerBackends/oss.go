package writerbackends

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/cockroachdb/errors"

	"squeeze/logger"
)

// UploadToOSS uploads content to an Aliyun OSS bucket.
func UploadToOSS(ctx context.Context, accessInfo map[string]string, objectName string, reader io.Reader) (string, error) {
	endpoint := accessInfo["endpoint"]
	bucketName := accessInfo["bucket"]
	if endpoint == "" || bucketName == "" {
		return "", errors.New("missing required accessInfo keys: endpoint, bucket")
	}

	client, err := oss.New(endpoint, accessInfo["accessKeyID"], accessInfo["accessKeySecret"])
	if err != nil {
		return "", errors.Wrap(err, "failed to create OSS client")
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get bucket %s", bucketName)
	}

	objectKey := strings.TrimPrefix(objectName, "/")
	// the SDK has no context-aware PutObject; bail out early at least
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := bucket.PutObject(objectKey, reader, oss.ContentType("image/jpeg")); err != nil {
		return "", errors.Wrapf(err, "failed to upload object %s", objectKey)
	}

	logger.Infof("Successfully uploaded object '%s' to OSS bucket '%s'", objectKey, bucketName)
	return fmt.Sprintf("oss://%s/%s", bucketName, objectKey), nil
}
