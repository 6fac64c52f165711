package domain

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether neither token is held.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Session is derived state, never stored: IsAuthenticated follows from the
// presence of an access token, User may lag behind while the profile loads.
type Session struct {
	User            *User
	IsAuthenticated bool
}
