package types

import (
	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

// Actor identifies who is calling a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) IsStaff() bool {
	return a.Role == enums.RoleStaff
}

// CanManage reports whether the actor may act on a resource owned by ownerID.
func (a Actor) CanManage(ownerID uuid.UUID) bool {
	return a.IsStaff() || (a.UserID != uuid.Nil && a.UserID == ownerID)
}
