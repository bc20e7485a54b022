package queue

import (
	"context"
	"sync"

	"github.com/emrgen/plm/internal/model"
)

// DefaultActivityTopic receives one message per committed mutating action.
var DefaultActivityTopic = "plm.activity"

// ActivityPublisher forwards committed activity records to downstream consumers.
type ActivityPublisher interface {
	// Publish sends the record; delivery is best effort.
	Publish(ctx context.Context, activity *model.ActivityLog) error
	Close()
}

var _ ActivityPublisher = (*Nop)(nil)

// Nop drops every record.
type Nop struct{}

func NewNop() *Nop { return &Nop{} }

func (n *Nop) Publish(context.Context, *model.ActivityLog) error { return nil }

func (n *Nop) Close() {}

var _ ActivityPublisher = (*Memory)(nil)

// Memory records published activities, used by tests.
type Memory struct {
	mu         sync.Mutex
	activities []*model.ActivityLog
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(_ context.Context, activity *model.ActivityLog) error {
	m.mu.Lock()
	m.activities = append(m.activities, activity)
	m.mu.Unlock()

	return nil
}

// Published returns the records received so far.
func (m *Memory) Published() []*model.ActivityLog {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*model.ActivityLog(nil), m.activities...)
}

func (m *Memory) Close() {}
