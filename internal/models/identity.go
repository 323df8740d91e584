package models

// Identity is the caller's externally-issued identity. The core never mints
// tokens; the HTTP boundary verifies the session token and hands the claims in.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

func (i Identity) IsCustomer() bool { return i.Role == RoleCustomer }
func (i Identity) IsProvider() bool { return i.Role == RoleProvider }
func (i Identity) IsAdmin() bool    { return i.Role == RoleAdmin }
