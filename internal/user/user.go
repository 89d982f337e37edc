package users

import (
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
)

type ContextKey string

const UserKey ContextKey = "user"

const ProviderSlack = "slack"

type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	Username   string    `db:"username" json:"username"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	Provider   *string   `db:"provider" json:"provider,omitempty"`
	ProviderID *string   `db:"provider_id" json:"provider_id,omitempty"`
	AvatarURL  *string   `db:"avatar_url" json:"avatar_url,omitempty"`
}

// SlackID returns the Slack member id of users that signed in through Slack.
func (u *User) SlackID() (string, bool) {
	if !utils.Is(u.Provider, ProviderSlack) || utils.OrZero(u.ProviderID) == "" {
		return "", false
	}
	return *u.ProviderID, true
}
