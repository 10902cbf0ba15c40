package enums

import "fmt"

// UserRole distinguishes ordinary buyers from internal platform accounts.
type UserRole string

const (
	UserRoleBuyer    UserRole = "buyer"
	UserRoleMerchant UserRole = "merchant"
	UserRolePlatform UserRole = "platform"
)

var validUserRoles = []UserRole{
	UserRoleBuyer,
	UserRoleMerchant,
	UserRolePlatform,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}

// UserStatus tracks whether an account may transact.
type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusFrozen      UserStatus = "frozen"
	UserStatusDeactivated UserStatus = "deactivated"
)

var validUserStatuses = []UserStatus{
	UserStatusActive,
	UserStatusFrozen,
	UserStatusDeactivated,
}

// String implements fmt.Stringer.
func (s UserStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known UserStatus.
func (s UserStatus) IsValid() bool {
	for _, candidate := range validUserStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseUserStatus converts raw input into a UserStatus.
func ParseUserStatus(value string) (UserStatus, error) {
	for _, candidate := range validUserStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user status %q", value)
}
