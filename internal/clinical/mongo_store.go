package clinical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "clinical_records"

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique appointment_id index that enforces
// the one-record-per-appointment invariant.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "appointment_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create clinical_records indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) AppendNote(ctx context.Context, patientID, appointmentID uuid.UUID, note Note) (*Record, error) {
	return s.append(ctx, patientID, appointmentID, bson.M{"notes": note})
}

func (s *MongoStore) AppendPrescription(ctx context.Context, patientID, appointmentID uuid.UUID, p Prescription) (*Record, error) {
	return s.append(ctx, patientID, appointmentID, bson.M{"prescriptions": p})
}

// append upserts the record for the appointment and pushes one entry,
// so the first write for an appointment lazily creates its record.
func (s *MongoStore) append(ctx context.Context, patientID, appointmentID uuid.UUID, push bson.M) (*Record, error) {
	now := time.Now().UTC()

	filter := bson.M{"appointment_id": appointmentID.String()}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        uuid.NewString(),
			"patient_id": patientID.String(),
			"created_at": now,
		},
		"$set":  bson.M{"updated_at": now},
		"$push": push,
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var rec Record
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec); err != nil {
		return nil, fmt.Errorf("append clinical record entry: %w", err)
	}
	return &rec, nil
}

func (s *MongoStore) Get(ctx context.Context, appointmentID uuid.UUID) (*Record, error) {
	var rec Record
	err := s.coll.FindOne(ctx, bson.M{"appointment_id": appointmentID.String()}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get clinical record: %w", err)
	}
	return &rec, nil
}

func (s *MongoStore) ListPrescribed(ctx context.Context, limit int) ([]Record, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := s.coll.Find(ctx, bson.M{"prescriptions.0": bson.M{"$exists": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list prescribed records: %w", err)
	}
	defer cursor.Close(ctx)

	var result []Record
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode prescribed records: %w", err)
	}
	return result, nil
}
