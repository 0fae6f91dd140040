package config

type NavigationConfig interface {
	GetForbiddenRedirect() string
	GetSessionEndedRedirect() string
}

type Navigation struct{}

var _ NavigationConfig = Navigation{}

// GetForbiddenRedirect is where a 403 sends the user.
func (Navigation) GetForbiddenRedirect() string {
	return "/"
}

// GetSessionEndedRedirect is where a failed refresh sends the user.
func (Navigation) GetSessionEndedRedirect() string {
	return "/login"
}
