package bridge

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository is a generic MongoDB repository for a single collection.
// The type parameter T represents the document type.
type Repository[T any] struct {
	client     *mongo.Client     // MongoDB client for database operations
	collection *mongo.Collection // MongoDB collection to operate on
}

// RepoOption defines a function type for configuring a Repository instance.
type RepoOption[T any] func(*Repository[T])

// WithClient returns a RepoOption that sets the MongoDB client for the repository.
func WithClient[T any](client *mongo.Client) RepoOption[T] {
	return func(r *Repository[T]) { r.client = client }
}

// WithCollection returns a RepoOption that sets the MongoDB collection for the repository.
func WithCollection[T any](collection *mongo.Collection) RepoOption[T] {
	return func(r *Repository[T]) { r.collection = collection }
}

// NewRepositoryWithOptions creates a Repository with custom configuration options.
func NewRepositoryWithOptions[T any](opts ...RepoOption[T]) *Repository[T] {
	repo := &Repository[T]{}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FindOne finds a single document matching the filter. A missing document is
// reported as ErrNotFound.
func (r *Repository[T]) FindOne(ctx context.Context, filter bson.D) (*T, error) {
	var result T
	err := r.collection.FindOne(ctx, filter).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindMany finds all documents matching the filter.
func (r *Repository[T]) FindMany(ctx context.Context, filter bson.D, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []T
	for cursor.Next(ctx) {
		var result T
		if err := cursor.Decode(&result); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Upsert replaces the fields of the document matching filter, inserting it
// when absent, and returns the stored document.
func (r *Repository[T]) Upsert(ctx context.Context, filter bson.D, document T) (*T, error) {
	updateDoc, err := excludeIdField(document)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare update document: %w", err)
	}
	update := bson.D{{Key: "$set", Value: updateDoc}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var val T
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&val); err != nil {
		return nil, err
	}
	return &val, nil
}

// DeleteMany deletes every document matching the filter.
func (r *Repository[T]) DeleteMany(ctx context.Context, filter bson.D) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// CreateIndex creates an index on the collection.
func (r *Repository[T]) CreateIndex(ctx context.Context, keys bson.D, opt *options.IndexOptions) (string, error) {
	return r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opt})
}

// GetClient returns the MongoDB client associated with the repository.
func (r *Repository[T]) GetClient() *mongo.Client { return r.client }

// excludeIdField turns a document into a $set body without _id and without
// zero-valued fields tagged omitzero.
func excludeIdField[T any](document T) (bson.M, error) {
	data, err := bson.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	var bsonMap bson.M
	if err := bson.Unmarshal(data, &bsonMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	delete(bsonMap, "_id")
	val := reflect.ValueOf(document)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return bsonMap, nil
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		bsonTag := field.Tag.Get("bson")
		if bsonTag == "" {
			continue
		}

		var bsonFieldName string
		hasOmitZero := false
		for tagPart := range strings.SplitSeq(bsonTag, ",") {
			if tagPart == "omitzero" {
				hasOmitZero = true
			} else if tagPart != "omitempty" && tagPart != "" {
				bsonFieldName = tagPart
			}
		}

		if hasOmitZero && bsonFieldName != "" && val.Field(i).IsZero() {
			delete(bsonMap, bsonFieldName)
		}
	}

	if len(bsonMap) == 0 {
		return nil, fmt.Errorf("no fields to update after excluding _id and zero-valued fields")
	}
	return bsonMap, nil
}
