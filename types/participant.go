package types

import "encoding/json"

// Participant is a member of a conversation, already normalized for display.
// Collaborators sometimes send participants as bare user ID strings and
// sometimes as populated objects; UnmarshalJSON accepts both so the rest of
// the code never branches on shape.
type Participant struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Avatar string `json:"avatar,omitempty" db:"avatar"`
}

func (p *Participant) UnmarshalJSON(b []byte) error {
	if len(b) != 0 && b[0] == '"' {
		var userID string
		if err := json.Unmarshal(b, &userID); err != nil {
			return err
		}

		*p = Participant{ID: userID}
		return nil
	}

	type participant Participant
	var raw participant
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	// Some payloads use "_id" instead of "id".
	if raw.ID == "" {
		var alias struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(b, &alias); err != nil {
			return err
		}
		raw.ID = alias.ID
	}

	*p = Participant(raw)
	return nil
}

// Identity is the authenticated user as supplied by the identity collaborator.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}
