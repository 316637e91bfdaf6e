package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/service"
)

// Accounts is the part of the auth service the HTTP layer needs.
type Accounts interface {
	PreRegister(ctx context.Context, in service.PreRegisterInput) error
	VerifyRegistration(ctx context.Context, in service.VerifyRegistrationInput) (*model.User, error)
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	Logout(ctx context.Context, id model.Identity) error
	GetProfile(ctx context.Context, id model.Identity) (*model.User, error)
	UpdateProfile(ctx context.Context, id model.Identity, in service.UpdateProfileInput) (*model.User, error)
	DeleteAccount(ctx context.Context, id model.Identity) error
}

// AuthHandler handles registration, login and the current user.
type AuthHandler struct {
	accounts Accounts
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts Accounts, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

// identity returns the caller attached by the auth middleware. Missing
// identities come back zero and the service rejects them.
func identity(r *http.Request) model.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

// PreRegister sends a registration token to an email address.
// POST /register/preregister
func (h *AuthHandler) PreRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.PreRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := h.accounts.PreRegister(r.Context(), service.PreRegisterInput{Email: req.Email}); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{
		Message: "Registration started. Check your email for the token.",
	})
}

// Verify completes a registration with the emailed token.
// POST /register/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, err := h.accounts.VerifyRegistration(r.Context(), service.VerifyRegistrationInput{
		Token:                req.Token,
		Name:                 req.Name,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.VerifyResponse{
		Message: "Registration completed.",
		User:    dto.ToUserResponse(user),
	})
}

// Login issues a bearer token.
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Message:   "Logged in.",
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.ToUserResponse(result.User),
	})
}

// Logout revokes the token used for this request.
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), identity(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out."})
}

// Profile returns the authenticated user.
// GET /user
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.GetProfile(r.Context(), identity(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProfileResponse{User: dto.ToUserResponse(user)})
}

// UpdateProfile changes name and/or password of the authenticated user.
// PUT /user
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), identity(r), service.UpdateProfileInput{
		Name:                 req.Name,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileUpdateResponse{
		Message: "Profile updated.",
		User:    dto.ToUserResponse(user),
	})
}

// DeleteAccount removes the authenticated user and everything they own.
// DELETE /user
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), identity(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Account deleted."})
}
