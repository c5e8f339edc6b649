package doctorstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps doctor status records in Redis.
type Store struct {
	redis *redis.Client
	now   func() time.Time
}

// NewStore creates a status store backed by the given Redis client.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("doctorstatus: redis client required")
	}
	return &Store{redis: redisClient, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) key(doctorID string) string {
	return fmt.Sprintf("doctor:%s:status", doctorID)
}

// Get returns the doctor's current status. A doctor with no record is
// offline. A timed break that has elapsed reads back as online; expiry is a
// property of the read, there is no background timer.
func (s *Store) Get(ctx context.Context, doctorID string) (Record, error) {
	data, err := s.redis.Get(ctx, s.key(doctorID)).Bytes()
	if err == redis.Nil {
		return Record{Status: Offline}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("doctorstatus: get %s: %w", doctorID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("doctorstatus: decode %s: %w", doctorID, err)
	}
	if rec.Expired(s.now()) {
		rec.Status = Online
		rec.BreakUntil = nil
		rec.BreakReason = ""
	}
	return rec, nil
}

// Set stores a new status. breakDuration applies only to OnBreak; zero means
// an indefinite break.
func (s *Store) Set(ctx context.Context, doctorID string, status Status, breakDuration time.Duration, breakReason string) (Record, error) {
	if !status.Valid() {
		return Record{}, fmt.Errorf("doctorstatus: unknown status %q", status)
	}

	rec := Record{Status: status, UpdatedAt: s.now().UTC()}
	if status == OnBreak {
		rec.BreakReason = breakReason
		if breakDuration > 0 {
			until := rec.UpdatedAt.Add(breakDuration)
			rec.BreakUntil = &until
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("doctorstatus: encode %s: %w", doctorID, err)
	}
	if err := s.redis.Set(ctx, s.key(doctorID), data, 0).Err(); err != nil {
		return Record{}, fmt.Errorf("doctorstatus: set %s: %w", doctorID, err)
	}
	return rec, nil
}
