package domain

type Role string

const (
	RoleOperator  Role = "OPERATOR"
	RolePurchaser Role = "PURCHASER"
	RoleManager   Role = "MANAGER"
	RoleAdmin     Role = "ADMIN"
)

// User is the acting principal supplied by the identity provider.
type User struct {
	ID    string
	Roles []Role
}

func (u User) HasAnyRole(roles ...Role) bool {
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// CanOverrideApprover reports whether the user may decide flows addressed to someone else.
func (u User) CanOverrideApprover() bool {
	return u.HasAnyRole(RoleAdmin)
}
