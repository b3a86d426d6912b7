package httpx

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/service/account"
	"github.com/splax/expensetracker/internal/service/auth"
)

const passwordTooLongError = "password must be at most 72 bytes"

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func validEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email != "" && !validEmail(payload.Email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	user, err := r.auth.Register(req.Context(), payload.Username, payload.Email, payload.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, newUserResponse(user))
	case errors.Is(err, auth.ErrDuplicateUsername):
		writeError(w, http.StatusBadRequest, "Username already registered")
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, passwordTooLongError)
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "username, email and password are required")
	default:
		r.internalError(w, req, err)
	}
}

func (r *Router) handleToken(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := req.PostForm.Get("username")
	password := req.PostForm.Get("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	token, err := r.auth.Login(req.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			r.recordLogin("failure")
			writeUnauthorized(w, "Incorrect username or password")
			return
		}
		r.recordLogin("error")
		r.internalError(w, req, err)
		return
	}
	r.recordLogin("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"expires_in":   int64(token.ExpiresIn.Seconds()),
	})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	actor, _ := userFromContext(req.Context())
	user, err := r.account.Profile(req.Context(), actor)
	if err != nil {
		r.internalError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (r *Router) handleUpdateMe(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email *string `json:"email"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.Email != nil && !validEmail(strings.TrimSpace(*payload.Email)) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	actor, _ := userFromContext(req.Context())
	user, err := r.account.UpdateProfile(req.Context(), actor, account.ProfileInput{Email: payload.Email})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newUserResponse(user))
	case errors.Is(err, account.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, account.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid email address")
	default:
		r.internalError(w, req, err)
	}
}

func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	actor, _ := userFromContext(req.Context())
	err := r.account.ChangePassword(req.Context(), actor, payload.CurrentPassword, payload.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"detail": "Password updated successfully"})
	case errors.Is(err, account.ErrWrongCurrentPassword):
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
	case errors.Is(err, account.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, passwordTooLongError)
	case errors.Is(err, account.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "new password is required")
	default:
		r.internalError(w, req, err)
	}
}
