package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wgbowley/PassEM/internal/document"
)

// MongoStore keeps the encoded document in the "data" field of one Mongo
// document keyed by the vault name. The stored bytes are the same JSON the
// file backend writes.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	name   string
}

type mongoVault struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func NewMongoStore(ctx context.Context, uri, dbName, collName, name string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if name == "" {
		return nil, errors.New("vault name is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to mongo")
	}
	// Verify connection quickly
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, errors.Wrap(err, "cannot reach mongo")
	}
	return NewMongoStoreWithClient(cli, dbName, collName, name), nil
}

// NewMongoStoreWithClient reuses an existing client. Close disconnects it.
func NewMongoStoreWithClient(cli *mongo.Client, dbName, collName, name string) *MongoStore {
	return &MongoStore{
		client: cli,
		coll:   cli.Database(dbName).Collection(collName),
		name:   name,
	}
}

func (m *MongoStore) Read(ctx context.Context) (*document.Document, error) {
	var v mongoVault
	err := m.coll.FindOne(ctx, bson.M{"_id": m.name}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read vault %q from mongo", m.name)
	}
	return decode(v.Data)
}

func (m *MongoStore) Write(ctx context.Context, doc *document.Document) error {
	b, err := encode(doc)
	if err != nil {
		return err
	}
	_, err = m.coll.ReplaceOne(
		ctx,
		bson.M{"_id": m.name},
		mongoVault{ID: m.name, Data: b, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrapf(err, "cannot write vault %q to mongo", m.name)
	}
	return nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
