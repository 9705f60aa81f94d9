package bus

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one published domain event. Detail carries the JSON payload;
// Source and DetailType are the routing tags subscribers filter on.
type Event struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detail_type"`
	Detail     json.RawMessage `json:"detail"`
	Time       time.Time       `json:"time"`
}

// Filter selects events for a subscription. An empty Source matches any
// source; an empty DetailTypes slice matches any detail type.
type Filter struct {
	Source      string
	DetailTypes []string
}

func (f Filter) Match(ev Event) bool {
	if f.Source != "" && f.Source != ev.Source {
		return false
	}
	if len(f.DetailTypes) == 0 {
		return true
	}
	for _, dt := range f.DetailTypes {
		if dt == ev.DetailType {
			return true
		}
	}
	return false
}

// Bus is the publish/subscribe boundary between the dispatcher and whatever
// wants the pipeline's domain events.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe registers a named, filtered subscription. Delivery stops
	// when the context is canceled.
	Subscribe(ctx context.Context, name string, filter Filter) (<-chan Event, error)
}
