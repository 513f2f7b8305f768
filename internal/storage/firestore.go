package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hyperjump/quanhday/internal/models"
)

// FirestoreStore implements Store on Cloud Firestore. Collections map to
// top-level Firestore collections.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore initializes a Firebase app for projectID. credentialsFile may be
// empty to use application default credentials or the emulator.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, storeError("connect", "firestore", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Insert stores doc under a Firestore generated id.
func (s *FirestoreStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, map[string]interface{}(doc))
	if err != nil {
		return "", firestoreError("insert", collection, err)
	}
	return ref.ID, nil
}

// Put creates or replaces the document with id.
func (s *FirestoreStore) Put(ctx context.Context, collection, id string, doc Document) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, map[string]interface{}(doc))
	return firestoreError("put", collection, err)
}

// Query returns documents whose filter field lies in range.
func (s *FirestoreStore) Query(ctx context.Context, collection string, filter RangeFilter) ([]Snapshot, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := filter.validate(); err != nil {
		return nil, err
	}
	q := s.client.Collection(collection).Query
	if filter.Min != nil {
		q = q.Where(filter.Field, ">=", filter.Min)
	}
	if filter.Max != nil {
		q = q.Where(filter.Field, "<=", filter.Max)
	}
	q = q.OrderBy(filter.Field, firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []Snapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, firestoreError("query", collection, err)
		}
		out = append(out, Snapshot{ID: doc.Ref.ID, Data: normalizeFirestore(doc.Data())})
	}
	return out, nil
}

// GetByID returns the document with id, or found=false.
func (s *FirestoreStore) GetByID(ctx context.Context, collection, id string) (*Snapshot, bool, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, false, err
	}
	doc, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, firestoreError("get", collection, err)
	}
	return &Snapshot{ID: doc.Ref.ID, Data: normalizeFirestore(doc.Data())}, true, nil
}

// Close closes the client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func firestoreError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%s %s: %w: %w", op, collection, models.ErrInvalidArgument, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s %s: %w: %w: %w", op, collection, models.ErrTimeout, models.ErrStoreUnavailable, err)
	}
	return storeError(op, collection, err)
}

// normalizeFirestore converts geo points written by other clients into the
// latitude/longitude map the rest of the code reads.
func normalizeFirestore(data map[string]interface{}) Document {
	for k, v := range data {
		switch t := v.(type) {
		case *latlng.LatLng:
			data[k] = map[string]interface{}{"latitude": t.GetLatitude(), "longitude": t.GetLongitude()}
		case map[string]interface{}:
			data[k] = map[string]interface{}(normalizeFirestore(t))
		}
	}
	return Document(data)
}
