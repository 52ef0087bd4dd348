package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/project-starfall/identity"
)

// AuthAPI serves the token-based wire protocol: login, refresh, logout,
// self lookup, password change, and the admin user surface.
type AuthAPI struct {
	engine *identity.Engine
	log    *slog.Logger
}

// NewAuthAPI builds the wire API around engine. A nil logger discards.
func NewAuthAPI(engine *identity.Engine, log *slog.Logger) *AuthAPI {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &AuthAPI{engine: engine, log: log}
}

// Register mounts the API's routes on r. Wrong-method requests get a 405
// envelope rather than mux's default empty body.
func (a *AuthAPI) Register(r *mux.Router) {
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondErr(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", a.handleRefresh).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/auth/logout", a.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/users", a.handleCreateUser).Methods(http.MethodPost)
	r.HandleFunc("/users/me", a.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/users/me/profile", a.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/users/me/password", a.handleChangePassword).Methods(http.MethodPost)
	r.HandleFunc("/users/me/username", a.handleChangeUsername).Methods(http.MethodPost)
	r.HandleFunc("/users/me/email", a.handleChangeEmail).Methods(http.MethodPost)
	r.HandleFunc("/admin/users", a.handleAdminList).Methods(http.MethodGet)
	r.HandleFunc("/admin/users", a.handleCreateUser).Methods(http.MethodPost)
}

func (a *AuthAPI) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type loginRequest struct {
	// The identifier may arrive under either key; "id" wins when both are
	// present.
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AuthAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	identifier := req.ID
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" || req.Password == "" {
		respondErr(w, http.StatusBadRequest, "Missing credentials")
		return
	}

	uid, err := a.engine.UIDFromIdentifier(r.Context(), identifier)
	if err != nil {
		respondEngineErr(w, a.log, "login", err)
		return
	}
	tok, err := a.engine.Login(r.Context(), uid, req.Password)
	if err != nil {
		respondEngineErr(w, a.log, "login", err)
		return
	}

	respondOK(w, http.StatusOK, map[string]any{
		"access_token": tok,
		"token_type":   "Bearer",
	})
}

func (a *AuthAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}
	fresh, err := a.engine.Refresh(r.Context(), tok)
	if err != nil {
		respondEngineErr(w, a.log, "refresh", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]any{
		"access_token": fresh,
		"token_type":   "Bearer",
	})
}

func (a *AuthAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}
	if err := a.engine.Logout(r.Context(), tok); err != nil {
		respondEngineErr(w, a.log, "logout", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (a *AuthAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}
	info, err := a.engine.UserInfo(r.Context(), tok)
	if err != nil {
		respondEngineErr(w, a.log, "me", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]any{"user": info})
}

func (a *AuthAPI) handleProfile(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}
	profile, err := a.engine.Profile(r.Context(), tok)
	if err != nil {
		respondEngineErr(w, a.log, "profile", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]any{"profile": profile})
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleCreateUser registers a new account. Only admins may call it.
func (a *AuthAPI) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		respondErr(w, http.StatusBadRequest, "Missing username or password")
		return
	}

	uid, err := a.engine.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondEngineErr(w, a.log, "create user", err)
		return
	}
	respondOK(w, http.StatusCreated, map[string]any{
		"username": req.Username,
		"uid":      uid,
	})
}

func (a *AuthAPI) handleAdminList(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	respondOK(w, http.StatusOK, map[string]any{
		"users": a.engine.ListPublicUsers(r.Context()),
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (a *AuthAPI) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		respondErr(w, http.StatusBadRequest, "New password is required")
		return
	}
	if err := a.engine.ChangePassword(r.Context(), tok, req.OldPassword, req.NewPassword); err != nil {
		respondEngineErr(w, a.log, "change password", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]any{"message": "Password changed"})
}

func (a *AuthAPI) handleChangeUsername(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.engine.ChangeUsername(r.Context(), tok, req.Username); err != nil {
		respondEngineErr(w, a.log, "change username", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]any{"message": "Username changed"})
}

func (a *AuthAPI) handleChangeEmail(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.engine.ChangeEmail(r.Context(), tok, req.Email); err != nil {
		respondEngineErr(w, a.log, "change email", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]any{"message": "Email changed"})
}

// requireAdmin authenticates the caller and confirms they are configured
// as an administrator. Writes the failure response itself.
func (a *AuthAPI) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	tok, ok := bearerToken(r)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Missing bearer token")
		return false
	}
	uid, err := a.engine.AuthenticateToken(r.Context(), tok)
	if err != nil {
		respondEngineErr(w, a.log, "admin auth", err)
		return false
	}
	if !a.engine.IsAdmin(uid) {
		respondErr(w, http.StatusForbidden, "Admin privileges required")
		return false
	}
	return true
}
