package git

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// DefaultTokenUsername is sent with token authentication when no username is configured.
const DefaultTokenUsername = "token"

// TokenAuth returns HTTP basic auth carrying a personal access token, or nil
// when token is empty.
func TokenAuth(username, token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	if username == "" {
		username = DefaultTokenUsername
	}
	return &http.BasicAuth{Username: username, Password: token}
}
