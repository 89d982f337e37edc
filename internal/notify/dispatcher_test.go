package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAnnouncer struct{ mock.Mock }

func (m *mockAnnouncer) Announce(ctx context.Context, tournamentID uuid.UUID, text string) error {
	return m.Called(tournamentID, text).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, userID uuid.UUID, text string, metadata map[string]string) error {
	return m.Called(userID, text, metadata).Error(0)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, tournamentID uuid.UUID, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return b.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_Publish(t *testing.T) {
	tournamentID := uuid.New()
	announcer := &mockAnnouncer{}
	announcer.On("Announce", tournamentID, "Match #1: A beat B 2-0").Return(nil).Once()
	broadcaster := &recordingBroadcaster{}
	m := metrics.NewMock()

	d := NewDispatcher(discardLogger(), m, time.Second, WithAnnouncer(announcer), WithBroadcaster(broadcaster))

	d.Publish(context.Background(), tournamentID, "Match #1: A beat B 2-0", &Event{Type: EventMatchUpdated, Payload: map[string]int{"score_1": 2}})
	d.Wait()

	announcer.AssertExpectations(t)
	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, EventMatchUpdated, broadcaster.events[0].Type)
	assert.Equal(t, tournamentID.String(), broadcaster.events[0].RoomID)
	assert.Equal(t, 1, m.NotificationsSent(channelAnnounce))
	assert.Equal(t, 1, m.NotificationsSent(channelBroadcast))
}

func TestDispatcher_FailuresAreCounted(t *testing.T) {
	tournamentID := uuid.New()
	announcer := &mockAnnouncer{}
	announcer.On("Announce", tournamentID, mock.Anything).Return(errors.New("slack down"))
	broadcaster := &recordingBroadcaster{err: errors.New("socket gone")}
	m := metrics.NewMock()

	d := NewDispatcher(discardLogger(), m, time.Second, WithAnnouncer(announcer), WithBroadcaster(broadcaster))

	// the caller's context being cancelled right away must not stop delivery
	ctx, cancel := context.WithCancel(context.Background())
	d.Publish(ctx, tournamentID, "text", &Event{Type: EventRoundUpdated})
	cancel()
	d.Wait()

	assert.Equal(t, 1, m.NotificationsFailed(channelAnnounce))
	assert.Equal(t, 1, m.NotificationsFailed(channelBroadcast))
	assert.Equal(t, 0, m.NotificationsSent(channelAnnounce))
}

func TestDispatcher_NotifyUser(t *testing.T) {
	userID := uuid.New()
	notifier := &mockNotifier{}
	notifier.On("Notify", userID, "Round 2 is complete", map[string]string{"round": "2"}).Return(nil).Once()
	m := metrics.NewMock()

	d := NewDispatcher(discardLogger(), m, time.Second, WithDirectNotifier(notifier))
	d.NotifyUser(context.Background(), userID, "Round 2 is complete", map[string]string{"round": "2"})
	d.Wait()

	notifier.AssertExpectations(t)
	assert.Equal(t, 1, m.NotificationsSent(channelDirect))
}

func TestDispatcher_NilSafe(t *testing.T) {
	var d *Dispatcher
	d.Publish(context.Background(), uuid.New(), "text", nil)
	d.NotifyUser(context.Background(), uuid.New(), "text", nil)
	d.Wait()

	// nothing configured: publish is a no-op
	empty := NewDispatcher(discardLogger(), nil, 0)
	empty.Publish(context.Background(), uuid.New(), "text", &Event{Type: EventMatchUpdated})
	empty.NotifyUser(context.Background(), uuid.New(), "text", nil)
	empty.Wait()
}
