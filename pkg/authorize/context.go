package authorize

import "github.com/google/uuid"

// SubjectFor is the casbin subject of a user: the bare user id.
func SubjectFor(userID uuid.UUID) GroupSubject {
	return GroupSubject(userID.String())
}
