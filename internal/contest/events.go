package contest

import (
	"encoding/json"
	"time"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/pubsub"
)

// SubmissionAccepted is emitted by the external judging subsystem when a
// submission's verdict becomes accepted. An empty ContestID means the
// submission was not made in a contest and is ignored by this core.
type SubmissionAccepted struct {
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	ProblemID    string    `json:"problem_id"`
	ContestID    string    `json:"contest_id,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// EventKind is the closed set of lifecycle events this core produces.
type EventKind int

const (
	EventContestCreated EventKind = iota
	EventContestUpdated
	EventContestDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventContestCreated:
		return "contest.created"
	case EventContestUpdated:
		return "contest.updated"
	case EventContestDeleted:
		return "contest.deleted"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Event is a contest lifecycle notification for external consumers
// (schedulers, notifier services).
type Event struct {
	Kind      EventKind `json:"kind"`
	ContestID string    `json:"contest_id"`
}

func publishEvent(broker *pubsub.Broker, kind EventKind, contestID string) {
	if broker == nil {
		return
	}
	msg, err := json.Marshal(Event{Kind: kind, ContestID: contestID})
	if err != nil {
		return
	}
	broker.Publish(pubsub.ContestEventsTopic, msg)
}
