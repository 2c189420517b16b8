// Chat endpoints: widget message submission, event logging, and history.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vallit/go-site-backend/internal/domain"
	"github.com/vallit/go-site-backend/internal/services"
	"github.com/vallit/go-site-backend/internal/utils"
)

// SubmitChatMessage handles POST /chat/message.
//
// The message runs through the full pipeline (window rate limit, duplicate
// and speed guards, persistence) and an assistant reply comes back on
// admission. Rejections map to the pipeline's fixed 4xx responses.
func (h *Handlers) SubmitChatMessage(c *gin.Context) {
	body, okBody := bindBody(c)
	if !okBody {
		return
	}

	reply, out := h.chatSvc.Submit(c.Request.Context(), body)
	if !finishSubmission(c, "chat_message", out) {
		return
	}
	ok(c, http.StatusOK, gin.H{"reply": reply})
}

// LogChatMessage handles POST /chat/log. Either side of the conversation can
// be recorded; no rate limiting applies.
func (h *Handlers) LogChatMessage(c *gin.Context) {
	body, okBody := bindBody(c)
	if !okBody {
		return
	}

	out := h.chatSvc.Log(c.Request.Context(), body)
	if !finishSubmission(c, "chat_log", out) {
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

// ListMessagesResponse is the paginated chat history envelope.
type ListMessagesResponse struct {
	Items      []domain.ChatMessage `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
}

// ChatHistory handles GET /chat/sessions/:id/messages with page/page_size
// query parameters.
func (h *Handlers) ChatHistory(c *gin.Context) {
	sessionID := c.Param("id")

	page, pageSize := utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), 20),
		100,
	)

	items, total, err := h.chatSvc.History(c.Request.Context(), sessionID, page, pageSize)
	if err != nil {
		if err == services.ErrSessionNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}
	if items == nil {
		items = []domain.ChatMessage{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
		},
	})
}
