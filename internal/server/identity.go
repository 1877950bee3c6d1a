package server

import "net/http"

// Identity is the caller identity supplied by the authentication layer. The
// relay only carries it for logging and lifecycle events.
type Identity struct {
	Name      string
	Anonymous bool
}

func (i Identity) String() string {
	if i.Anonymous || i.Name == "" {
		return "anonymous"
	}
	return i.Name
}

// Authenticator resolves the identity of an incoming WebSocket request.
// Returning an error rejects the connection with 401.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(r *http.Request) (Identity, error)

// Authenticate calls f(r).
func (f AuthenticatorFunc) Authenticate(r *http.Request) (Identity, error) {
	return f(r)
}

// AnonymousAuthenticator accepts every request as an anonymous caller.
type AnonymousAuthenticator struct{}

// Authenticate implements Authenticator.
func (AnonymousAuthenticator) Authenticate(*http.Request) (Identity, error) {
	return Identity{Anonymous: true}, nil
}
