// Package handler contains the HTTP request handlers.
//
// Handlers are glue: parse the request, call the service layer, write the
// response. The login rules themselves live in internal/service and
// internal/auth.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/ofcardoso/medbox/internal/auth"
	"github.com/ofcardoso/medbox/internal/service"
)

// stateCookie carries the CSRF state between the login redirect and the
// provider callback.
const stateCookie = "oauth_state"

// AuthHandler owns the Google sign-in flow and session teardown.
//
//	HandleLogin    → GET /login           redirect to Google's consent page
//	HandleCallback → GET /login/callback  complete the flow, start a session
//	HandleLogout   → GET /logout          clear the session cookie
//	HandleMe       → GET /api/me          JSON profile of the signed-in user
type AuthHandler struct {
	google *auth.GoogleProvider
	auths  *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler with its dependencies injected.
func NewAuthHandler(google *auth.GoogleProvider, auths *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		google: google,
		auths:  auths,
		logger: logger,
	}
}

// HandleLogin redirects the browser to Google's authorization page.
//
// A random state value goes into a short-lived cookie first; the callback
// only proceeds when Google echoes the same value back, so a forged
// callback can't complete a flow this server never started.
//
// The authorization URL is built from the discovery document, so if Google
// is unreachable the login fails here, before any state exists.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // long enough to approve the consent screen
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	authURL, err := h.google.AuthURL(r.Context(), state)
	if err != nil {
		h.logger.Error("login: building authorization URL", slog.String("error", err.Error()))
		writeFlowError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleCallback completes the sign-in flow.
//
// GET /login/callback?code=xxx&state=yyy
//
//  1. Verify the state parameter against the state cookie.
//  2. Exchange the single-use code for an access token.
//  3. Fetch and validate the identity claims (email must be verified).
//  4. Resolve or create the local user and issue the session cookie.
//
// Every failure leaves the browser anonymous: no session cookie is set and
// no user is created unless the whole chain succeeded. Nothing is retried —
// the code is consumed by Google whether or not the exchange succeeded.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Google reports a denied consent screen as an error parameter.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	token, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("callback: code exchange failed", slog.String("error", err.Error()))
		writeFlowError(w, err)
		return
	}

	claims, err := h.google.FetchClaims(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrEmailNotVerified) {
			// The one rejection with its own user-visible message.
			http.Error(w, "User email not verified by Google.", http.StatusBadRequest)
			return
		}
		h.logger.Error("callback: claims fetch failed", slog.String("error", err.Error()))
		writeFlowError(w, err)
		return
	}

	result, err := h.auths.LoginWithGoogle(r.Context(), claims)
	if err != nil {
		h.logger.Error("callback: login failed", slog.String("error", err.Error()))
		writeFlowError(w, err)
		return
	}

	// The session is the signed token in an HttpOnly cookie. Secure should
	// be set once the deployment is HTTPS-only.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(auth.SessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie and sends the browser home.
// The route sits behind RequireAuth, so anonymous requests never get here.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleMe returns the signed-in user's profile as JSON. The client-side
// alarm scripts use it to learn who is signed in without a page reload.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't panic if miswired.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("me: user lookup failed", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// writeFlowError maps a login-flow failure to its HTTP response. The
// provider being down is a gateway problem; everything else about a failed
// login collapses to a generic authentication failure.
func writeFlowError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrProviderUnavailable) {
		http.Error(w, "identity provider unavailable", http.StatusBadGateway)
		return
	}
	http.Error(w, "authentication failed", http.StatusInternalServerError)
}
