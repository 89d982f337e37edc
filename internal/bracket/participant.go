package bracket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type ParticipantStatus string

const (
	ParticipantActive     ParticipantStatus = "active"
	ParticipantEliminated ParticipantStatus = "eliminated"
	ParticipantRemoved    ParticipantStatus = "removed"
)

// Participant is an individual in a Full Mix pool.
type Participant struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	TournamentID uuid.UUID         `db:"tournament_id" json:"tournament_id"`
	UserID       *uuid.UUID        `db:"user_id" json:"user_id,omitempty"`
	Name         string            `db:"name" json:"name"`
	Rating       int               `db:"rating" json:"rating"`
	Status       ParticipantStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

func (p *Participant) Ref() MemberRef {
	return ParticipantRef(p.ID)
}

type RefKind string

const (
	RefUser        RefKind = "user"
	RefParticipant RefKind = "participant"
)

// MemberRef identifies a roster member. Older documents stored members as
// bare ids or as {"user_id": ..} objects; UnmarshalJSON folds all of those
// into the tagged form.
type MemberRef struct {
	Kind  RefKind `json:"kind"`
	Value string  `json:"value"`
}

func ParticipantRef(id uuid.UUID) MemberRef {
	return MemberRef{Kind: RefParticipant, Value: id.String()}
}

func UserRef(id string) MemberRef {
	return MemberRef{Kind: RefUser, Value: id}
}

// ParticipantID returns the participant uuid for participant refs.
func (r MemberRef) ParticipantID() (uuid.UUID, bool) {
	if r.Kind != RefParticipant {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(r.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (r MemberRef) IsZero() bool {
	return r.Value == ""
}

func (r MemberRef) String() string {
	return string(r.Kind) + ":" + r.Value
}

func (r *MemberRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = MemberRef{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = MemberRef{Kind: RefParticipant, Value: s}
		return nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if kind, ok := obj["kind"]; ok {
			var k string
			if err := json.Unmarshal(kind, &k); err != nil {
				return err
			}
			v, err := scalarString(obj["value"])
			if err != nil {
				return err
			}
			*r = MemberRef{Kind: RefKind(k), Value: v}
			return nil
		}
		for _, key := range []string{"user_id", "participant_id", "id"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			v, err := scalarString(raw)
			if err != nil {
				return err
			}
			kind := RefParticipant
			if key == "user_id" {
				kind = RefUser
			}
			*r = MemberRef{Kind: kind, Value: v}
			return nil
		}
		return fmt.Errorf("member reference has no identifier: %s", data)
	default:
		// bare numbers were user ids
		v, err := scalarString(data)
		if err != nil {
			return err
		}
		*r = MemberRef{Kind: RefUser, Value: v}
		return nil
	}
}

func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("empty member reference value")
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
