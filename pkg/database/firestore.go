package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// FirestoreDB wraps the Firestore client obtained from the Firebase Admin SDK
type FirestoreDB struct {
	Client *firestore.Client
}

// FirestoreConfig holds Firebase project configuration
type FirestoreConfig struct {
	ProjectID       string
	CredentialsPath string // service account JSON; empty uses application default credentials
}

// NewFirebaseApp initializes the Firebase app shared by Firestore and
// Cloud Messaging
func NewFirebaseApp(ctx context.Context, config *FirestoreConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		// Read credentials into memory instead of handing the path to the SDK
		credentials, err := os.ReadFile(filepath.Clean(config.CredentialsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to read Firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(credentials))
	}

	var appConfig *firebase.Config
	if config.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: config.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// NewFirestoreDB opens the Firestore client of a Firebase app
func NewFirestoreDB(ctx context.Context, app *firebase.App) (*FirestoreDB, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreDB{Client: client}, nil
}

// Close releases the Firestore client
func (db *FirestoreDB) Close() error {
	return db.Client.Close()
}
