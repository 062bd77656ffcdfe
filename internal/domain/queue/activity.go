package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityLimit caps the per-branch log.
const ActivityLimit = 10

type Activity struct {
	At          time.Time `json:"at"`
	Type        string    `json:"type"`
	EntryID     uuid.UUID `json:"entry_id"`
	QueueNumber int       `json:"queue_number"`
	PatientName string    `json:"patient_name,omitempty"`
	Status      string    `json:"status"`
}

// ActivityLog keeps the last ActivityLimit transitions per branch in memory.
// It is reset on restart.
type ActivityLog struct {
	mu      sync.Mutex
	entries map[string][]Activity
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{entries: make(map[string][]Activity)}
}

func (l *ActivityLog) Add(branch string, a Activity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := append(l.entries[branch], a)
	if len(list) > ActivityLimit {
		list = append([]Activity(nil), list[len(list)-ActivityLimit:]...)
	}
	l.entries[branch] = list
}

// Recent returns the branch log, newest first.
func (l *ActivityLog) Recent(branch string) []Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.entries[branch]
	out := make([]Activity, len(list))
	for i, a := range list {
		out[len(list)-1-i] = a
	}
	return out
}
