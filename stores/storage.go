package stores

import (
	"context"
	"designlink/config"
	"designlink/core"
	"designlink/stores/aws"
	"designlink/stores/filesystem"
	"designlink/stores/memory"
	"designlink/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the BlobStore selected by cfg.StorageType, falling back
// to memory for unknown values.
func GetStore(ctx context.Context, cfg *config.Config) (core.BlobStore, error) {
	var (
		store core.BlobStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store, err = filesystem.NewStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		storageField["bucketName"] = cfg.S3BucketName
		storageField["prefix"] = cfg.S3Prefix
		store, err = aws.NewStore(ctx, cfg.S3BucketName, cfg.S3Prefix)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	if err != nil {
		logrus.WithFields(storageField).WithError(err).Error("Failed to initialize storage")
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
