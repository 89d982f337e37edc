package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

var (
	_ Announcer      = (*LogNotifier)(nil)
	_ DirectNotifier = (*LogNotifier)(nil)
)

// LogNotifier writes notifications to the log. Used when Slack is not
// configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Announce(ctx context.Context, tournamentID uuid.UUID, text string) error {
	n.logger.InfoContext(ctx, "announcement", "tournament_id", tournamentID, "text", text)
	return nil
}

func (n *LogNotifier) Notify(ctx context.Context, userID uuid.UUID, text string, metadata map[string]string) error {
	n.logger.InfoContext(ctx, "direct notification", "user_id", userID, "text", text, "metadata", metadata)
	return nil
}
