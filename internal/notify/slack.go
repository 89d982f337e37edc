package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
)

// slackClient is the subset of slack.Client used here.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackMemberLookup resolves a user to their Slack member id.
type SlackMemberLookup interface {
	GetSlackMemberID(ctx context.Context, id interface{}) (string, error)
}

const slackEventType = "tournament_update"

var (
	_ Announcer      = (*SlackAnnouncer)(nil)
	_ DirectNotifier = (*SlackNotifier)(nil)
)

type SlackAnnouncer struct {
	api       slackClient
	channelID string
}

func NewSlackAnnouncer(token, channelID string) *SlackAnnouncer {
	return NewSlackAnnouncerWithAPI(slack.New(token), channelID)
}

// NewSlackAnnouncerWithAPI is used by tests to intercept API calls.
func NewSlackAnnouncerWithAPI(api slackClient, channelID string) *SlackAnnouncer {
	return &SlackAnnouncer{api: api, channelID: channelID}
}

func (s *SlackAnnouncer) Announce(ctx context.Context, tournamentID uuid.UUID, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionMetadata(slack.SlackMetadata{
			EventType:    slackEventType,
			EventPayload: map[string]interface{}{"tournament_id": tournamentID.String()},
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to post announcement: %w", err)
	}
	return nil
}

type SlackNotifier struct {
	api   slackClient
	users SlackMemberLookup
}

func NewSlackNotifier(token string, users SlackMemberLookup) *SlackNotifier {
	return NewSlackNotifierWithAPI(slack.New(token), users)
}

func NewSlackNotifierWithAPI(api slackClient, users SlackMemberLookup) *SlackNotifier {
	return &SlackNotifier{api: api, users: users}
}

// Notify sends a direct message. Posting to a member id opens the DM channel.
func (s *SlackNotifier) Notify(ctx context.Context, userID uuid.UUID, text string, metadata map[string]string) error {
	memberID, err := s.users.GetSlackMemberID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve slack member: %w", err)
	}

	payload := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		payload[k] = v
	}

	_, _, err = s.api.PostMessageContext(ctx, memberID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionMetadata(slack.SlackMetadata{EventType: slackEventType, EventPayload: payload}),
	)
	if err != nil {
		return fmt.Errorf("failed to post direct message: %w", err)
	}
	return nil
}
