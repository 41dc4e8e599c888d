// Conversational question answering endpoint.
//
//   - POST /chat/ask
//
// The caller is identified by the X-User-ID header (or upstream auth
// middleware); the (user, service) pair selects the conversation, so the
// client carries no session token.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/supportdesk/go-kb-backend/internal/services"
)

// AskRequest is the JSON payload for asking a question.
type AskRequest struct {
	// ServiceID scopes retrieval to one service's documents.
	ServiceID int `json:"service_id" binding:"required,gt=0"`
	// Question is the user's question (1–2000 chars).
	Question string `json:"question" binding:"required"`
}

// Ask answers a question grounded in the service's manuals. When nothing
// relevant is found the response carries the fixed decline answer and
// "grounded": false.
func (h *Handlers) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "service_id and question are required")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question must not be empty")
		return
	}

	ans, err := h.askSvc.Ask(c.Request.Context(), userID(c), req.ServiceID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyQuestion), errors.Is(err, services.ErrQuestionTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrServiceNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "service not found")
		case errors.Is(err, services.ErrEmbeddingUnavailable), errors.Is(err, services.ErrGenerationFailed):
			fail(c, http.StatusBadGateway, ErrCodeAnswerFailed, "answer generation is temporarily unavailable")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ans)
}
