package bridge

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	settingsCollection     = "settings"
	formSettingsCollection = "form_settings"
	credentialsDocumentID  = "cf7_civicrm_settings"
)

type credentialsDocument struct {
	Id          string `bson:"_id"`
	Credentials `bson:",inline"`
}

// MongoStore keeps the credentials as a single document keyed by the option
// name and the per-form settings in their own collection.
type MongoStore struct {
	credentials *Repository[credentialsDocument]
	forms       *Repository[FormSettings]
}

// NewMongoStore prepares the repositories and the unique form_id index.
func NewMongoStore(ctx context.Context, client *mongo.Client, database string) (*MongoStore, error) {
	db := client.Database(database)
	store := &MongoStore{
		credentials: NewRepositoryWithOptions(
			WithClient[credentialsDocument](client),
			WithCollection[credentialsDocument](db.Collection(settingsCollection)),
		),
		forms: NewRepositoryWithOptions(
			WithClient[FormSettings](client),
			WithCollection[FormSettings](db.Collection(formSettingsCollection)),
		),
	}

	_, err := store.forms.CreateIndex(ctx,
		bson.D{{Key: "form_id", Value: 1}},
		options.Index().SetUnique(true).SetName("form_id_unique"))
	if err != nil {
		return nil, fmt.Errorf("failed to create form_id index: %w", err)
	}
	return store, nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.forms.GetClient().Ping(ctx, readpref.Nearest())
}

func (m *MongoStore) GetCredentials(ctx context.Context) (Credentials, error) {
	doc, err := m.credentials.FindOne(ctx, bson.D{{Key: "_id", Value: credentialsDocumentID}})
	if err != nil {
		return Credentials{}, err
	}
	return doc.Credentials, nil
}

func (m *MongoStore) SaveCredentials(ctx context.Context, creds Credentials) error {
	_, err := m.credentials.Upsert(ctx,
		bson.D{{Key: "_id", Value: credentialsDocumentID}},
		credentialsDocument{Id: credentialsDocumentID, Credentials: creds})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (m *MongoStore) DeleteCredentials(ctx context.Context) error {
	_, err := m.credentials.DeleteMany(ctx, bson.D{{Key: "_id", Value: credentialsDocumentID}})
	return err
}

func (m *MongoStore) GetForm(ctx context.Context, id FormID) (FormSettings, error) {
	fs, err := m.forms.FindOne(ctx, bson.D{{Key: "form_id", Value: int64(id)}})
	if err != nil {
		return FormSettings{}, err
	}
	return *fs, nil
}

func (m *MongoStore) SaveForm(ctx context.Context, fs FormSettings) error {
	if fs.FormID == 0 {
		return ErrInvalidFormID
	}
	if _, err := m.forms.Upsert(ctx, bson.D{{Key: "form_id", Value: int64(fs.FormID)}}, fs); err != nil {
		return fmt.Errorf("failed to save form %s settings: %w", fs.FormID, err)
	}
	return nil
}

func (m *MongoStore) ListForms(ctx context.Context) ([]FormSettings, error) {
	return m.forms.FindMany(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "form_id", Value: 1}}))
}

func (m *MongoStore) DeleteAllForms(ctx context.Context) (int64, error) {
	return m.forms.DeleteMany(ctx, bson.D{})
}
