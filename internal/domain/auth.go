package domain

// ============================================================
// Auth: Request / Response types
// ============================================================

// RegisterRequest is the body for POST /v1/auth/register. It creates a
// company and its first user.
type RegisterRequest struct {
	CompanyName  string `json:"company_name"`
	ContactEmail string `json:"contact_email"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int      `json:"expires_in"`
	User        *User    `json:"user"`
	Company     *Company `json:"company,omitempty"`
}

// DistributionEmailsRequest is the body for PUT
// /v1/companies/{companyId}/distribution-emails.
type DistributionEmailsRequest struct {
	Emails []string `json:"emails"`
}

// MeResponse is returned by GET /v1/auth/me.
type MeResponse struct {
	User    *User    `json:"user"`
	Company *Company `json:"company,omitempty"`
}
