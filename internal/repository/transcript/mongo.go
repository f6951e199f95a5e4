package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xpanvictor/aura/internal/domains/conversation"
)

const sessionsCollection = "sessions"

// sessionEntity is the bson form of SessionDoc.
type sessionEntity struct {
	ID              bson.ObjectID           `bson:"_id,omitempty"`
	RoomName        string                  `bson:"room_name"`
	OwnerID         string                  `bson:"owner_id,omitempty"`
	Agents          []string                `bson:"agents,omitempty"`
	StartTime       time.Time               `bson:"start_time"`
	EndTime         *time.Time              `bson:"end_time,omitempty"`
	Status          string                  `bson:"status"`
	DurationSeconds float64                 `bson:"duration_seconds,omitempty"`
	Conversation    []conversation.LogEntry `bson:"conversation"`
}

func (e *sessionEntity) FromDomain(doc SessionDoc) {
	e.RoomName = doc.RoomName
	e.OwnerID = doc.OwnerID
	e.Agents = doc.Agents
	e.StartTime = doc.StartTime
	e.EndTime = doc.EndTime
	e.Status = doc.Status
	e.DurationSeconds = doc.DurationSeconds
	e.Conversation = doc.Conversation
	if e.Conversation == nil {
		e.Conversation = []conversation.LogEntry{}
	}
}

func (e *sessionEntity) ToDomain() SessionDoc {
	return SessionDoc{
		ID:              e.ID.Hex(),
		RoomName:        e.RoomName,
		OwnerID:         e.OwnerID,
		Agents:          e.Agents,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		Status:          e.Status,
		DurationSeconds: e.DurationSeconds,
		Conversation:    e.Conversation,
	}
}

// MongoStore keeps one document per session in the sessions collection. It is both the
// primary Sink and the Archive behind the conversations API.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(sessionsCollection)}
}

// EnsureIndexes creates the indexes the conversations listing relies on.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "start_time", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	})
	return err
}

// CreateSession implements Sink.
func (m *MongoStore) CreateSession(ctx context.Context, doc SessionDoc) (string, error) {
	var e sessionEntity
	e.FromDomain(doc)
	if e.Status == "" {
		e.Status = StatusActive
	}
	res, err := m.coll.InsertOne(ctx, &e)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert session: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// Append implements Sink.
func (m *MongoStore) Append(ctx context.Context, id string, entry conversation.LogEntry) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	_, err = m.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"conversation": entry}},
	)
	return err
}

// Finalize implements Sink.
func (m *MongoStore) Finalize(ctx context.Context, id string, s Summary) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	_, err = m.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"end_time":         s.EndTime,
			"status":           s.Status,
			"duration_seconds": s.DurationSeconds,
		}},
	)
	return err
}

// ListCompleted returns the latest finished sessions without their transcripts.
func (m *MongoStore) ListCompleted(ctx context.Context, ownerID string, limit int64) ([]SessionDoc, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.M{"conversation": 0})

	cur, err := m.coll.Find(ctx, completedFilter(ownerID), opts)
	if err != nil {
		return nil, err
	}
	var entities []sessionEntity
	if err := cur.All(ctx, &entities); err != nil {
		return nil, err
	}
	out := make([]SessionDoc, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].ToDomain())
	}
	return out, nil
}

func completedFilter(ownerID string) bson.M {
	filter := bson.M{"status": bson.M{"$ne": StatusActive}}
	if ownerID == "" {
		// anonymous sessions are stored without the field
		filter["owner_id"] = bson.M{"$in": bson.A{nil, ""}}
	} else {
		filter["owner_id"] = ownerID
	}
	return filter
}

// Get returns one session with its full transcript.
func (m *MongoStore) Get(ctx context.Context, id string) (SessionDoc, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return SessionDoc{}, ErrNotFound
	}
	var e sessionEntity
	if err := m.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return SessionDoc{}, ErrNotFound
		}
		return SessionDoc{}, err
	}
	return e.ToDomain(), nil
}
