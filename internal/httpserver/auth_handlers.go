package httpserver

import (
	"log/slog"
	"net/http"

	"messagely/internal/service"
)

type tokenResponse struct {
	Token string `json:"token"`
}

// @Summary      Register a new user
// @Description  Register a new user and return an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body service.RegisterInput true "Register input"
// @Success      201  {object}  tokenResponse
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /auth/register [post]
func handleRegister(authSvc *service.AuthService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.RegisterInput
		if !decodeJSON(w, r, &req) {
			return
		}

		token, err := authSvc.RegisterAndIssue(r.Context(), req)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusCreated, tokenResponse{Token: token})
	}
}

// @Summary      Login
// @Description  Login with username and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body service.LoginInput true "Login input"
// @Success      200  {object}  tokenResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/login [post]
func handleLogin(authSvc *service.AuthService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.LoginInput
		if !decodeJSON(w, r, &req) {
			return
		}

		token, err := authSvc.Login(r.Context(), req)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusOK, tokenResponse{Token: token})
	}
}
