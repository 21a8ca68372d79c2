package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/and161185/place-keeper/internal/errs"
	"github.com/and161185/place-keeper/internal/remote"
)

// Identity implements remote.IdentityProvider on the identity-toolkit
// endpoints. Provider rejections carry a code in error.error.message; that
// code is surfaced verbatim as the AuthError reason — friendly wording is the
// session store's job.
type Identity struct {
	c      *Client
	base   string
	apiKey string
}

var _ remote.IdentityProvider = (*Identity)(nil)

// NewIdentity constructs an identity client for the given endpoint base and
// API key.
func NewIdentity(c *Client, baseURL, apiKey string) *Identity {
	return &Identity{c: c, base: baseURL, apiKey: apiKey}
}

type authRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type authResponse struct {
	IDToken   string `json:"idToken"`
	LocalID   string `json:"localId"`
	ExpiresIn string `json:"expiresIn"` // seconds, as a decimal string
}

// SignUp registers new credentials.
func (i *Identity) SignUp(ctx context.Context, email, password string) (remote.AuthData, error) {
	return i.call(ctx, "accounts:signUp", email, password)
}

// SignIn authenticates existing credentials.
func (i *Identity) SignIn(ctx context.Context, email, password string) (remote.AuthData, error) {
	return i.call(ctx, "accounts:signInWithPassword", email, password)
}

func (i *Identity) call(ctx context.Context, endpoint, email, password string) (remote.AuthData, error) {
	u := i.base + "/" + endpoint + "?key=" + i.apiKey
	req := authRequest{Email: email, Password: password, ReturnSecureToken: true}
	var resp authResponse
	if err := i.c.doJSON(ctx, http.MethodPost, u, req, &resp); err != nil {
		if code := providerCode(err); code != "" {
			return remote.AuthData{}, &errs.AuthError{Reason: code}
		}
		return remote.AuthData{}, err
	}
	return remote.AuthData{
		UserID: resp.LocalID,
		Token:  resp.IDToken,
		TTL:    parseTTL(resp.ExpiresIn),
	}, nil
}

// providerCode extracts the provider error code from a rejected request body.
func providerCode(err error) string {
	var re *errs.RemoteError
	if !errors.As(err, &re) || re.Body == "" {
		return ""
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(re.Body), &payload) != nil {
		return ""
	}
	return payload.Error.Message
}

func parseTTL(s string) time.Duration {
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
