package models

// Credentials are posted to the login and register endpoints.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Tokens is the bearer token pair kept on disk between runs.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User is the authenticated user's profile.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
