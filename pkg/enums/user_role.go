package enums

import "fmt"

// UserRole is carried in access tokens.
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleStaff    UserRole = "staff"
)

func (r UserRole) IsValid() bool {
	return r == RoleCustomer || r == RoleStaff
}

func ParseUserRole(value string) (UserRole, error) {
	role := UserRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid user role %q", value)
	}
	return role, nil
}
