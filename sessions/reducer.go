package sessions

// Reduce applies an action to a state and returns the next state.
// It has no side effects; any action is accepted from any phase.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case LoginStart:
		state.Loading = true

	case LoginSuccess:
		state.AccessToken = a.AccessToken
		state.ExpiresIn = a.ExpiresIn
		state.ExpirationSeconds = a.ExpirationSeconds
		state.Loading = false
		state.LoggedIn = a.AccessToken != ""
		state.Error = false

	case LoginFailure:
		state = state.clearTokens()
		state.Loading = false
		state.LoggedIn = false
		state.Error = true

	case Logout:
		state = state.clearTokens()
		state.Loading = false
		state.LoggedIn = false
		state.Error = false
	}
	return state
}
