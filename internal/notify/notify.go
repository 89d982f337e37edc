// Package notify delivers bracket updates after a unit of work commits.
// Delivery is best effort: failures are logged and counted, never retried.
package notify

import (
	"context"

	"github.com/google/uuid"
)

const (
	EventMatchUpdated   = "MATCH_UPDATED"
	EventRoundUpdated   = "ROUND_UPDATED"
	EventRoundComplete  = "ROUND_COMPLETE"
	EventBracketCleared = "BRACKET_CLEARED"
)

// Event is the payload pushed to live tournament viewers.
type Event struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Payload any    `json:"payload"`
}

// Announcer posts a human readable message to the tournament's channel.
type Announcer interface {
	Announce(ctx context.Context, tournamentID uuid.UUID, text string) error
}

// Broadcaster pushes an event to everyone watching a tournament.
type Broadcaster interface {
	Broadcast(ctx context.Context, tournamentID uuid.UUID, event Event) error
}

// DirectNotifier messages a single user.
type DirectNotifier interface {
	Notify(ctx context.Context, userID uuid.UUID, text string, metadata map[string]string) error
}
