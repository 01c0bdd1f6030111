// Package selector chooses the storage backend at process start and runs
// the one-time migration away from the legacy sqlite database.
package selector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"quizbench/internal/config"
	"quizbench/internal/storage"
	"quizbench/internal/storage/flatfile"
	"quizbench/internal/storage/mongodb"
)

const pingTimeout = 5 * time.Second

// Open selects a backend and migrates legacy data into it. Selection order:
// the document store when a connection string is configured and reachable,
// otherwise the flat-file store under the data root. A failed probe is a
// downgrade, never a process failure.
func Open(ctx context.Context, cfg config.Config, paths config.Paths, log *logrus.Logger) (storage.Store, error) {
	store, err := pick(ctx, cfg, paths, log)
	if err != nil {
		return nil, err
	}

	if err := migrateLegacy(ctx, paths, store, log); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func pick(ctx context.Context, cfg config.Config, paths config.Paths, log *logrus.Logger) (storage.Store, error) {
	if cfg.MongoURI != "" {
		client, err := probeMongo(ctx, cfg.MongoURI)
		if err == nil {
			log.WithField("database", cfg.MongoDatabase).Info("storage: using document backend")
			store, err := mongodb.New(ctx, client, cfg.MongoDatabase)
			if err != nil {
				_ = client.Disconnect(ctx)
				return nil, err
			}
			return store, nil
		}
		log.WithError(err).Warn("storage: document store unreachable, falling back to flat files")
	}

	log.WithField("dir", paths.FlatFileDir).Info("storage: using flat-file backend")
	return flatfile.Open(paths.FlatFileDir)
}

func probeMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	probeCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	client, err := mongo.Connect(probeCtx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(pingTimeout))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(probeCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
