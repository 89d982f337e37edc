package service

import (
	"context"
	"log/slog"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
)

// NameResolver turns member refs into display names. Refs it cannot name are
// mapped to "".
type NameResolver interface {
	ResolveNames(ctx context.Context, tournamentID uuid.UUID, refs []bracket.MemberRef) map[bracket.MemberRef]string
}

type rosterNameResolver struct {
	roster    *store.RosterStore
	snapshots *store.SnapshotStore
	users     *store.UserStore
	logger    *slog.Logger
}

// NewNameResolver looks names up in the current participant list, then in
// historical team rosters, then in round snapshot documents and finally in
// the user table.
func NewNameResolver(stores *store.Stores, logger *slog.Logger) NameResolver {
	return &rosterNameResolver{
		roster:    stores.Rosters,
		snapshots: stores.Snapshots,
		users:     stores.Users,
		logger:    logger,
	}
}

func (r *rosterNameResolver) ResolveNames(ctx context.Context, tournamentID uuid.UUID, refs []bracket.MemberRef) map[bracket.MemberRef]string {
	names := make(map[bracket.MemberRef]string, len(refs))
	missing := func() []bracket.MemberRef {
		var out []bracket.MemberRef
		for _, ref := range refs {
			if names[ref] == "" {
				out = append(out, ref)
			}
		}
		return out
	}

	participants, err := r.roster.GetParticipants(ctx, tournamentID)
	if err != nil {
		r.logger.Warn("name lookup in participants failed", "tournament_id", tournamentID, "error", err)
	}
	for _, p := range participants {
		names[p.Ref()] = p.Name
	}
	if len(missing()) == 0 {
		return names
	}

	members, err := r.roster.GetTournamentMembers(ctx, tournamentID)
	if err != nil {
		r.logger.Warn("name lookup in team rosters failed", "tournament_id", tournamentID, "error", err)
	}
	for _, m := range members {
		ref := bracket.ParticipantRef(m.ParticipantID)
		if names[ref] == "" && m.DisplayName != nil {
			names[ref] = *m.DisplayName
		}
	}
	if len(missing()) == 0 {
		return names
	}

	snapshots, err := r.snapshots.GetSnapshots(ctx, tournamentID)
	if err != nil {
		r.logger.Warn("name lookup in round snapshots failed", "tournament_id", tournamentID, "error", err)
	}
	for _, snap := range snapshots {
		for _, teams := range [][]bracket.DraftTeam{snap.Document.Teams, snap.Document.Preview} {
			for _, team := range teams {
				for _, e := range team.Members {
					if names[e.Ref] == "" && e.Name != "" {
						names[e.Ref] = e.Name
					}
				}
			}
		}
		for _, st := range snap.Document.Standings {
			if names[st.Ref] == "" && st.Name != "" {
				names[st.Ref] = st.Name
			}
		}
	}

	var userIDs []string
	for _, ref := range missing() {
		if ref.Kind == bracket.RefUser {
			userIDs = append(userIDs, ref.Value)
		}
	}
	if len(userIDs) > 0 {
		usernames, err := r.users.GetUsernames(ctx, userIDs)
		if err != nil {
			r.logger.Warn("name lookup in users failed", "tournament_id", tournamentID, "error", err)
		}
		for id, name := range usernames {
			names[bracket.UserRef(id)] = name
		}
	}

	out := make(map[bracket.MemberRef]string, len(refs))
	for _, ref := range refs {
		out[ref] = names[ref]
	}
	return out
}
