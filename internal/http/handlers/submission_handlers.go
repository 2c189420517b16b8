// Form submission endpoints: booking, contact, and GDPR data requests.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BookAppointment handles POST /book-appointment.
//
// Validates name/email/date (topic and company optional), persists the
// appointment, and sends the confirmation mails best-effort. Supplying an
// Idempotency-Key makes retries safe: a replay is served from the stored
// record without re-booking.
func (h *Handlers) BookAppointment(c *gin.Context) {
	if h.serveReplay(c) {
		return
	}
	body, okBody := bindBody(c)
	if !okBody {
		return
	}

	id, out := h.bookingSvc.Book(c.Request.Context(), body)
	if !finishSubmission(c, "booking", out) {
		return
	}
	h.recordIdempotency(c, id)
	ok(c, http.StatusOK, gin.H{
		"status":         "ok",
		"appointment_id": id,
	})
}

// SubmitContact handles POST /contact.
//
// Validates name/company/email, persists the lead, and mails the admin inbox
// plus a visitor receipt best-effort.
func (h *Handlers) SubmitContact(c *gin.Context) {
	body, okBody := bindBody(c)
	if !okBody {
		return
	}

	out := h.contactSvc.Submit(c.Request.Context(), body)
	if !finishSubmission(c, "contact", out) {
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

// SubmitDataRequest handles POST /user/data-request.
//
// Validates email and request type (ACCESS or DELETE), persists the request
// as PENDING, and mails both parties best-effort. The response carries the
// reference id the requester can quote. Idempotency-Key replays are served
// from the stored record.
func (h *Handlers) SubmitDataRequest(c *gin.Context) {
	if h.serveReplay(c) {
		return
	}
	body, okBody := bindBody(c)
	if !okBody {
		return
	}

	id, out := h.dataSvc.Submit(c.Request.Context(), body)
	if !finishSubmission(c, "data_request", out) {
		return
	}
	h.recordIdempotency(c, id)
	ok(c, http.StatusOK, gin.H{
		"status":       "ok",
		"reference_id": id,
		"message":      "We will process your request within 30 days.",
	})
}
