package tasks

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"taskboard-api/domain"
)

var lastTimestamp int64

// nextTimestamp returns a strictly increasing unix-nano timestamp so events
// emitted in one request never tie.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}

func newEvent(evType, userID, entityID string, data any) (domain.Event, error) {
	var payload json.RawMessage
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return domain.Event{}, err
		}
		payload = raw
	}
	return domain.Event{
		ID:         uuid.NewString(),
		EntityID:   entityID,
		EntityType: "task",
		Type:       evType,
		Data:       payload,
		Time:       nextTimestamp(),
		UserID:     userID,
	}, nil
}
