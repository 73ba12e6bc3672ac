package auth

import "time"

type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleFPO      Role = "fpo"
	RoleRetailer Role = "retailer"
	RoleAdmin    Role = "admin"
)

// Approval tracks the admin review state of a marketplace account.
type Approval string

const (
	ApprovalPending  Approval = "pending"
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
)

// Account is the domain representation of a registered participant.
// It mirrors the accounts table and carries no JSON annotations so it can
// be reused by different presentation layers.
type Account struct {
	ID           string
	Role         Role
	Name         string
	Email        string
	PasswordHash string
	// RegistryNo holds the role-specific registry number: Aadhaar for
	// farmers, CIN for FPOs, GSTIN for retailers. Nil for admins.
	RegistryNo    *string
	WalletAddress *string
	City          string
	State         string
	Approval      Approval
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Principal identifies the authenticated actor making a request. It is
// assembled once at the HTTP boundary and passed explicitly to every
// operation; nothing downstream reconstructs identity from raw claims.
type Principal struct {
	ID   string
	Role Role
	Name string
}

// RegisterRequest contains registration data supplied by callers.
type RegisterRequest struct {
	Role          Role   `json:"role"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	RegistryNo    string `json:"registry_no"`
	WalletAddress string `json:"wallet_address"`
	City          string `json:"city"`
	State         string `json:"state"`
}

// LoginRequest contains login credentials. Role selects which kind of
// account the email is resolved against.
type LoginRequest struct {
	Role     Role   `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func isValidRole(role Role) bool {
	switch role {
	case RoleFarmer, RoleFPO, RoleRetailer, RoleAdmin:
		return true
	default:
		return false
	}
}
