package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"messagely/internal/domain"
	"messagely/internal/service"
)

type messageResponse struct {
	Message *domain.Message `json:"message"`
}

type messageDetailResponse struct {
	Message *domain.MessageDetail `json:"message"`
}

type readReceiptResponse struct {
	Message *domain.ReadReceipt `json:"message"`
}

// @Summary      Send a message
// @Description  Send a direct message from the caller to another user
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body service.SendInput true "Message"
// @Success      201  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /messages [post]
func handleSendMessage(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		var req service.SendInput
		if !decodeJSON(w, r, &req) {
			return
		}

		msg, err := msgSvc.Send(r.Context(), who, req)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusCreated, messageResponse{Message: msg})
	}
}

// @Summary      Get a message
// @Description  Only the sender or the recipient may read a message
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Message ID"
// @Success      200  {object}  messageDetailResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /messages/{id} [get]
func handleGetMessage(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		msg, err := msgSvc.Get(r.Context(), who, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusOK, messageDetailResponse{Message: msg})
	}
}

// @Summary      Mark a message read
// @Description  Only the recipient may mark a message read; the first read time is kept
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Message ID"
// @Success      200  {object}  readReceiptResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /messages/{id}/read [post]
func handleMarkRead(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		receipt, err := msgSvc.MarkRead(r.Context(), who, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		respond(w, http.StatusOK, readReceiptResponse{Message: receipt})
	}
}
