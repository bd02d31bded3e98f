package output

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
	applogger "github.com/217th/tda-bq-marketdata-exporter/pkg/logger"
)

// Uploader pushes export files to an S3-compatible bucket and hands back a
// presigned download URL.
type Uploader struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	l      *applogger.Logger
}

// UploaderConfig holds object storage settings.
type UploaderConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	URLExpiry time.Duration
}

func NewUploader(cfg UploaderConfig, l *applogger.Logger) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, "object storage client", err).
			WithContext("endpoint", cfg.Endpoint)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	return &Uploader{client: client, bucket: cfg.Bucket, expiry: expiry, l: l}, nil
}

// Upload stores the local file under objectName and returns a presigned GET
// URL valid for the configured expiry.
func (u *Uploader) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	info, err := u.client.FPutObject(ctx, u.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", classifyStorageErr("upload to object storage", err).
			WithContext("bucket", u.bucket).
			WithContext("object", objectName)
	}

	u.l.Info("object uploaded",
		applogger.String("bucket", u.bucket),
		applogger.String("object", objectName),
		applogger.Int64("size_bytes", info.Size),
	)

	url, err := u.client.PresignedGetObject(ctx, u.bucket, objectName, u.expiry, nil)
	if err != nil {
		return "", classifyStorageErr("presign download url", err).
			WithContext("bucket", u.bucket).
			WithContext("object", objectName)
	}
	return url.String(), nil
}

// Credential failures keep the authentication exit code; everything else at
// this boundary is output IO.
func classifyStorageErr(msg string, err error) *apperrors.ClassifiedError {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return apperrors.Wrap(apperrors.KindAuthentication, msg+": access denied", err)
		}
	}
	return apperrors.Wrap(apperrors.KindOutputIO, msg, err)
}
