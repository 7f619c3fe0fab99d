package controllers

import (
	"net/http"

	"github.com/mercadito-pesca/mercadito-backend/api/responses"
	"github.com/mercadito-pesca/mercadito-backend/api/validators"
	chatsvc "github.com/mercadito-pesca/mercadito-backend/internal/chat"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

// ChatList returns messages newer than after_id, oldest first.
func ChatList(svc chatsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("chat service"))
			return
		}
		afterID, err := validators.ParseQueryInt64(r, "after_id", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", chatsvc.DefaultPageSize, 1, chatsvc.MaxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		messages, err := svc.ListAfter(r.Context(), afterID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, messages)
	}
}

type postChatRequest struct {
	Text string `json:"text" validate:"required,notblank"`
}

func ChatPost(svc chatsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("chat service"))
			return
		}
		actor, err := requireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload postChatRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message, err := svc.Post(r.Context(), actor.UserID, payload.Text)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, message)
	}
}
