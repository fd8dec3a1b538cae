// Package transport provides the binary-upload implementations behind the
// engine's Uploader contract.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/driftline/attachkit/internal/attach"
	"github.com/google/uuid"
)

// S3Uploader uploads attachment binaries to an S3-compatible store
// (Cloudflare R2 in production). Cooperative abort comes for free from the
// SDK honoring context cancellation mid-request.
type S3Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string // format string with one %s verb for the object key
	logger    *slog.Logger
}

// NewS3Uploader builds an uploader writing to bucket. publicURL is the
// pattern the store serves objects under, e.g. "https://cdn.example.com/%s".
func NewS3Uploader(client *s3.Client, bucket, publicURL string, logger *slog.Logger) *S3Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{client: client, bucket: bucket, publicURL: publicURL, logger: logger}
}

// Upload implements attach.Uploader.
func (u *S3Uploader) Upload(ctx context.Context, src attach.Source, category attach.Category) attach.Result {
	data, err := src.Bytes()
	if err != nil {
		u.logger.Error("failed to read upload source", "file", src.Name(), "err", err)
		return attach.Failure("could not read the selected file")
	}

	remoteID := uuid.New().String()
	key := fmt.Sprintf("attachments/%s/%s_%s", category, remoteID, src.Name())

	obj, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(src.ContentType()),
	})
	if err != nil {
		if ctx.Err() != nil {
			// Aborted by the engine; the result is discarded either way.
			return attach.Failure("upload aborted")
		}
		u.logger.Error("failed to upload to object store", "key", key, "err", err)
		return attach.Failure("upload failed, please try again")
	}
	u.logger.Info("uploaded to object store", "key", key, "etag", aws.ToString(obj.ETag))

	return attach.Result{
		OK:        true,
		RemoteID:  remoteID,
		RemoteURI: CleanURL(fmt.Sprintf(u.publicURL, key)),
	}
}

// CleanURL percent-escapes spaces and normalizes the public object URL.
func CleanURL(urlStr string) string {
	urlStr = strings.ReplaceAll(urlStr, " ", "%20")
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	return parsedURL.String()
}
