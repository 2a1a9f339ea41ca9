package harness

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// EnvLiveURI names the environment variable holding the connection string
// for live round-trip tests. Unset means the live tests are skipped.
const EnvLiveURI = "DATATABLES_TEST_URI"

// LiveDatabase connects to the database named by EnvLiveURI, skipping the
// test when the variable is unset or the server is unreachable. The client
// is disconnected when the test finishes.
func LiveDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv(EnvLiveURI)
	if uri == "" {
		t.Skipf("%s not set, skipping live test", EnvLiveURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connecting to %s: %v", EnvLiveURI, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		t.Skipf("server behind %s not reachable: %v", EnvLiveURI, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	})

	return client.Database("datatables_test")
}

// TempCollection creates a uniquely named collection, seeds it with the
// given documents, and drops it when the test finishes. Unique names keep
// parallel test runs against a shared server from interfering.
func TempCollection(t *testing.T, db *mongo.Database, prefix string, docs []any) *mongo.Collection {
	t.Helper()

	coll := db.Collection(prefix + "_" + uuid.NewString())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = coll.Drop(ctx)
	})

	if len(docs) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			t.Fatalf("seeding %s: %v", coll.Name(), err)
		}
	}
	return coll
}
