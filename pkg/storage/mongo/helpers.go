package mongo

import (
	"context"

	"railwatch/pkg/storage"
)

var MongoTestConf = &Config{
	Host:   "localhost",
	Port:   "27018",
	DBName: "railwatch_test",
}

// StorageConnect establishes a connection to the predefined test Mongo instance.
func StorageConnect(ctx context.Context) (*Store, error) {
	db, err := New(ctx, MongoTestConf)
	if err != nil {
		return nil, storage.ErrConnectDB
	}

	err = db.Ping(ctx)
	if err != nil {
		db.Close(ctx)
		return nil, storage.ErrDBNotResponding
	}

	return db, nil
}

// RestoreDB drops the analyses collection.
// WARNING: Use only in tests to avoid data loss.
func RestoreDB(ctx context.Context, db *Store) error {
	return db.collection().Drop(ctx)
}
