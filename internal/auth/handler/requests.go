package handler

import (
	"time"

	"bloodlink/internal/auth/models"
)

// SignupRequest is the wire shape for account creation. The donor block is
// optional; when present the profile is created in the same call.
type SignupRequest struct {
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Donor    *DonorSignup `json:"donor,omitempty"`
}

// DonorSignup is the optional donor profile block on signup.
type DonorSignup struct {
	BloodType string `json:"blood_type"`
	Location  string `json:"location"`
}

// LoginRequest is the wire shape for authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest renames the account.
type UpdateProfileRequest struct {
	Name string `json:"name"`
}

// TokenResponse carries a fresh access token and the account it belongs to.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	DonorID   string    `json:"donor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
	if u.IsDonor() {
		resp.DonorID = u.DonorID.String()
	}
	return resp
}
