package files

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/report"
)

const signedURLExpiry = 7 * 24 * time.Hour

// FirebaseStore saves files in the Firebase Storage bucket of the app.
type FirebaseStore struct {
	bucket *gcs.BucketHandle
	name   string
	logger core.Logger
}

var _ report.FileStore = (*FirebaseStore)(nil) // interface compliance check

func NewFirebaseStore(ctx context.Context, app *firebase.App, conf *core.Config, logger core.Logger) (*FirebaseStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase storage")
	}
	var bucket *gcs.BucketHandle
	if conf.Storage.Bucket != "" {
		bucket, err = client.Bucket(conf.Storage.Bucket)
	} else {
		bucket, err = client.DefaultBucket()
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting bucket")
	}
	// the default bucket comes from the app config
	return &FirebaseStore{bucket: bucket, name: bucket.BucketName(), logger: logger}, nil
}

func (s *FirebaseStore) Save(ctx context.Context, filePath string, r io.Reader, contentType string) (string, error) {
	w := s.bucket.Object(filePath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "uploading file")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "uploading file")
	}

	signed, err := s.bucket.SignedURL(filePath, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(signedURLExpiry),
	})
	if err == nil {
		return signed, nil
	}
	// credentials cannot sign: fall back to the public object URL
	s.logger.Warn("signing url of "+filePath, err)
	return publicURL(s.name, filePath), nil
}

func publicURL(bucket, filePath string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + (&url.URL{Path: strings.TrimPrefix(filePath, "/")}).EscapedPath()
}
