package event

import (
	"time"

	"github.com/viant/nodeos/internal/clock"
)

// Context identifies the origin of an event
type Context struct {
	ProcessID string `json:"processId,omitempty"`
	EventType string `json:"eventType"`
	Source    string `json:"source,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
