package writerbackends

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"

	"squeeze/logger"
)

// UploadToS3WithCreds uploads content from an io.Reader to an S3 object
// and is fully self-contained, initializing its own client.
func UploadToS3WithCreds(ctx context.Context, accessInfo map[string]string, objectName string, reader io.Reader) (string, error) {
	bucket := accessInfo["bucket"]
	if bucket == "" || accessInfo["region"] == "" {
		return "", errors.New("missing required accessInfo keys: bucket, region")
	}

	creds := credentials.NewStaticCredentialsProvider(accessInfo["accessKey"], accessInfo["secretKey"], "")
	s3Client := s3.New(s3.Options{
		Region:      accessInfo["region"],
		Credentials: creds,
	})

	uploader := manager.NewUploader(s3Client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectName),
		Body:        reader,
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload object %s to bucket %s", objectName, bucket)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", objectName, bucket)
	return fmt.Sprintf("s3://%s/%s", bucket, objectName), nil
}
