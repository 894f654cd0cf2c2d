package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

type ConnectOptions struct {
	ConnectTimeout time.Duration
	// QueryTimeout bounds every operation issued through the client.
	QueryTimeout time.Duration
}

// Connect opens a traced client and verifies the deployment is reachable.
// The caller owns the client and must Disconnect it on shutdown.
func Connect(ctx context.Context, uri string, opts ConnectOptions) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetMonitor(otelmongo.NewMonitor())
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
		clientOpts.SetServerSelectionTimeout(opts.ConnectTimeout)
	}
	if opts.QueryTimeout > 0 {
		clientOpts.SetTimeout(opts.QueryTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, nil
}
