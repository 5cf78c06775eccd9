package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserType distinguishes the two marketplace account kinds.
type UserType string

const (
	UserTypeDeveloper UserType = "developer"
	UserTypeCompany   UserType = "company"
)

// Session is the authenticated identity handle issued by the identity provider.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Authenticated reports whether the session carries an identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// Profile is the marketplace document extending a Session with
// application-specific fields. Exactly one profile exists per user.
type Profile struct {
	ID              string   `json:"id"`
	UserID          string   `json:"user_id"`
	UserType        UserType `json:"user_type"`
	FullName        string   `json:"full_name"`
	Bio             string   `json:"bio,omitempty"`
	Location        string   `json:"location,omitempty"`
	Website         string   `json:"website,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	CompanyName     string   `json:"company_name,omitempty"`
	CompanyIndustry string   `json:"company_industry,omitempty"`
	HourlyRate      float64  `json:"hourly_rate,omitempty"`
	TotalProjects   int      `json:"total_projects,omitempty"`
	SuccessRate     float64  `json:"success_rate,omitempty"`
	AverageRating   float64  `json:"average_rating,omitempty"`
	IsVerified      bool     `json:"is_verified,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultProfile builds the minimal profile created during session bootstrap
// when no profile document exists yet for the user.
func DefaultProfile(userID, displayName string) *Profile {
	name := displayName
	if name == "" {
		name = "New User"
	}
	return &Profile{
		UserID:   userID,
		UserType: UserTypeDeveloper,
		FullName: name,
	}
}

// Credentials carries a password sign-in request.
type Credentials struct {
	Identifier string // email or username
	Password   string
}

// Registration carries a sign-up request, including the profile fields
// collected by the sign-up form.
type Registration struct {
	Email       string
	Password    string
	FullName    string
	UserType    UserType
	CompanyName string
	Location    string
	Phone       string
}

// ErrorDescriptor is the normalized error surfaced through AuthState.
type ErrorDescriptor struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// AuthState is the externally observable value of a client's session store.
type AuthState struct {
	User          *Session         `json:"user"`
	Profile       *Profile         `json:"profile"`
	IsLoading     bool             `json:"is_loading"`
	Err           *ErrorDescriptor `json:"error"`
	IsInitialized bool             `json:"is_initialized"`
}

// TokenClaims are the JWT claims minted by the local identity provider.
type TokenClaims struct {
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Account is a locally stored identity, used only by the self-hosted
// identity provider. Deployments on the hosted BaaS never touch this.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
