package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"

	"github.com/xpanvictor/aura/internal/domains/conversation"
)

func SessionEntriesKey(id string) string {
	return fmt.Sprintf("session:%s:entries", id)
}

func SessionMetaKey(id string) string {
	return fmt.Sprintf("session:%s:meta", id)
}

// RedisMirror keeps a short-lived copy of in-flight transcripts so they can be read
// while a session is still running.
type RedisMirror struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisMirror(rc *redis.Client, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisMirror{rc: rc, ttl: ttl}
}

// CreateSession implements Sink. An id is generated when the document has none.
func (r *RedisMirror) CreateSession(ctx context.Context, doc SessionDoc) (string, error) {
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := doc.Status
	if status == "" {
		status = StatusActive
	}
	key := SessionMetaKey(id)
	pipe := r.rc.TxPipeline()
	pipe.HMSet(key, map[string]interface{}{
		"room_name":  doc.RoomName,
		"owner_id":   doc.OwnerID,
		"start_time": doc.StartTime.Format(time.RFC3339Nano),
		"status":     status,
	})
	pipe.Expire(key, r.ttl)
	if _, err := pipe.Exec(); err != nil {
		return "", fmt.Errorf("mirror session %s: %w", id, err)
	}
	return id, nil
}

// Append implements Sink.
func (r *RedisMirror) Append(ctx context.Context, id string, entry conversation.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := SessionEntriesKey(id)
	pipe := r.rc.TxPipeline()
	pipe.RPush(key, data)
	pipe.Expire(key, r.ttl)
	_, err = pipe.Exec()
	return err
}

// Finalize implements Sink.
func (r *RedisMirror) Finalize(ctx context.Context, id string, s Summary) error {
	key := SessionMetaKey(id)
	pipe := r.rc.TxPipeline()
	pipe.HMSet(key, map[string]interface{}{
		"status":           s.Status,
		"end_time":         s.EndTime.Format(time.RFC3339Nano),
		"duration_seconds": strconv.FormatFloat(s.DurationSeconds, 'f', 3, 64),
	})
	pipe.Expire(key, r.ttl)
	pipe.Expire(SessionEntriesKey(id), r.ttl)
	_, err := pipe.Exec()
	return err
}

// Live reads back a mirrored session.
func (r *RedisMirror) Live(ctx context.Context, id string) (SessionDoc, error) {
	meta, err := r.rc.HGetAll(SessionMetaKey(id)).Result()
	if err != nil {
		return SessionDoc{}, err
	}
	if len(meta) == 0 {
		return SessionDoc{}, ErrNotFound
	}

	raw, err := r.rc.LRange(SessionEntriesKey(id), 0, -1).Result()
	if err != nil {
		return SessionDoc{}, err
	}
	entries := make([]conversation.LogEntry, 0, len(raw))
	for _, item := range raw {
		var e conversation.LogEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return SessionDoc{}, fmt.Errorf("decode entry: %w", err)
		}
		entries = append(entries, e)
	}

	doc := SessionDoc{
		ID:           id,
		RoomName:     meta["room_name"],
		OwnerID:      meta["owner_id"],
		Status:       meta["status"],
		Conversation: entries,
	}
	if t, err := time.Parse(time.RFC3339Nano, meta["start_time"]); err == nil {
		doc.StartTime = t
	}
	if v, ok := meta["end_time"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			doc.EndTime = &t
		}
	}
	if v, ok := meta["duration_seconds"]; ok {
		doc.DurationSeconds, _ = strconv.ParseFloat(v, 64)
	}
	return doc, nil
}
