package services

import "github.com/VincentPrime/endlessgrindbackend/internal/models"

// Actor is the authenticated identity a core operation runs on behalf of.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) valid() bool {
	return a.UserID > 0 && a.Role != ""
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) IsCoach() bool {
	return a.Role == models.RoleCoach
}
