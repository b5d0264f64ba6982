package controllers

import (
	"errors"
	"net/http"
	"strings"
)

// bearerFromHeader pulls the access token out of the Authorization header.
// Refresh and logout run outside the gate middleware because the access
// token is allowed to be expired there; only its signature matters.
func bearerFromHeader(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", errors.New("missing Authorization header")
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
