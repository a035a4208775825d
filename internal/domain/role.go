package domain

type Role string

const (
	RoleParticipantA Role = "user1"
	RoleParticipantB Role = "user2"
	RoleSpectator    Role = "spectator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleParticipantA, RoleParticipantB, RoleSpectator:
		return true
	}
	return false
}

// IsParticipant reports whether the role is allowed to publish messages.
func (r Role) IsParticipant() bool {
	return r == RoleParticipantA || r == RoleParticipantB
}

// Counterpart returns the other participant role, or "" for spectators.
func (r Role) Counterpart() Role {
	switch r {
	case RoleParticipantA:
		return RoleParticipantB
	case RoleParticipantB:
		return RoleParticipantA
	}
	return ""
}

// AssignRole decides the role of a joining client from a point-in-time presence
// snapshot. A client that already holds a record keeps its role. Otherwise the
// first free participant slot is handed out, and everyone after that spectates.
//
// The decision is only as good as the snapshot: two clients evaluating the same
// snapshot concurrently can both receive RoleParticipantA.
func AssignRole(existing []PresenceRecord, clientID string) Role {
	var hasA, hasB bool
	for _, rec := range existing {
		if rec.ClientID == clientID && rec.Role.Valid() {
			return rec.Role
		}
		switch rec.Role {
		case RoleParticipantA:
			hasA = true
		case RoleParticipantB:
			hasB = true
		}
	}

	switch {
	case !hasA:
		return RoleParticipantA
	case !hasB:
		return RoleParticipantB
	default:
		return RoleSpectator
	}
}
