package storage

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/shule/core"
)

// NewFirebaseApp initializes the firebase app shared by the firestore repositories and the firebase file store.
// Without a credentials file, Application Default Credentials are used.
func NewFirebaseApp(ctx context.Context, conf *core.Config) (*firebase.App, error) {
	fbConf := &firebase.Config{
		ProjectID:     conf.Database.FirestoreProject,
		StorageBucket: conf.Storage.Bucket,
	}
	var opts []option.ClientOption
	if conf.Database.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Database.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, fbConf, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase")
	}
	return app, nil
}
