// Identity echo endpoint for the account widget.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// headerUserEmail carries the authenticated visitor's email, set by the
// fronting auth proxy. The API itself performs no authentication.
const headerUserEmail = "X-User-Email"

// Me handles GET /user/me. Without an upstream identity the response is 401;
// with one it echoes the email plus a display name derived from it.
func (h *Handlers) Me(c *gin.Context) {
	email := strings.TrimSpace(c.GetHeader(headerUserEmail))
	if email == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"email": email,
		"name":  displayName(email),
	})
}

// displayName turns the local part of an email into a presentable name:
// separators become spaces and each word is title-cased, so
// "ada.lovelace@example.com" renders as "Ada Lovelace".
func displayName(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	return cases.Title(language.English).String(local)
}
