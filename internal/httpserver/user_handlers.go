package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"messagely/internal/domain"
	"messagely/internal/service"
)

type usersResponse struct {
	Users []domain.UserSummary `json:"users"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

type sentMessagesResponse struct {
	Messages []domain.SentMessage `json:"messages"`
}

type receivedMessagesResponse struct {
	Messages []domain.ReceivedMessage `json:"messages"`
}

// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  usersResponse
// @Failure      401  {object}  errorResponse
// @Router       /users [get]
func handleListUsers(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		users, err := userSvc.Roster(r.Context(), who)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusOK, usersResponse{Users: users})
	}
}

// @Summary      Get own profile
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        username path string true "Username"
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users/{username} [get]
func handleGetUser(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		user, err := userSvc.Profile(r.Context(), who, chi.URLParam(r, "username"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusOK, userResponse{User: user})
	}
}

// @Summary      List messages sent by the caller
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        username path string true "Username"
// @Success      200  {object}  sentMessagesResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users/{username}/from [get]
func handleMessagesFrom(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		msgs, err := userSvc.Sent(r.Context(), who, chi.URLParam(r, "username"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusOK, sentMessagesResponse{Messages: msgs})
	}
}

// @Summary      List messages sent to the caller
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        username path string true "Username"
// @Success      200  {object}  receivedMessagesResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users/{username}/to [get]
func handleMessagesTo(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		msgs, err := userSvc.Received(r.Context(), who, chi.URLParam(r, "username"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusOK, receivedMessagesResponse{Messages: msgs})
	}
}
