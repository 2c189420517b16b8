// Package services – BookingService
//
// This file implements the consultation booking flow: validate the form,
// persist the appointment (mandatory), and send the visitor confirmation and
// admin copy (best-effort, concurrently). Mail bodies render the appointment
// date in German, matching the site's locale.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/notify"
	"github.com/vallit/go-site-backend/internal/pipeline"
	"github.com/vallit/go-site-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// BookingService coordinates appointment submissions.
type BookingService struct {
	DB       *gorm.DB
	Pipeline *pipeline.Pipeline

	// Notifier sends confirmation mails; nil disables both mails.
	Notifier   notify.Notifier
	AdminEmail string

	// ZoomLink is the static meeting link included in confirmations.
	ZoomLink string

	Logger zerolog.Logger
}

var bookingContract = pipeline.Contract{
	{Name: "name", Required: true, Kind: pipeline.KindString},
	{Name: "email", Required: true, Kind: pipeline.KindEmail},
	{Name: "date", Required: true, Kind: pipeline.KindDate},
	{Name: "topic", Kind: pipeline.KindString},
	{Name: "company", Kind: pipeline.KindString},
}

// Book validates and persists one appointment. On admission the stored row's
// id is returned for idempotency records and client receipts.
func (s *BookingService) Book(ctx context.Context, body map[string]any) (string, pipeline.Outcome) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Book")
	defer span.End()

	var apptID string
	out := s.Pipeline.Run(ctx, pipeline.Submission{
		Contract: bookingContract,
		Body:     body,
		Effects: func(p pipeline.Payload) (mandatory, bestEffort []pipeline.Effect) {
			name := p.String("name")
			email := p.String("email")
			when := p.Time("date")
			topic := p.String("topic")
			if topic == "" {
				topic = "Consultation"
			}
			company := p.String("company")

			mandatory = []pipeline.Effect{{
				Name: "persist-appointment",
				Run: func(ctx context.Context) error {
					a, err := repo.CreateAppointment(ctx, s.DB, name, email, company, topic, when)
					if err == nil {
						apptID = a.ID
					}
					return err
				},
			}}
			if s.Notifier == nil {
				return mandatory, nil
			}

			data := notify.BookingData{
				Name:     name,
				Email:    email,
				Company:  company,
				Topic:    topic,
				Date:     formatDateDE(when),
				Time:     when.Format("15:04"),
				ZoomLink: s.ZoomLink,
			}
			bestEffort = []pipeline.Effect{
				{
					Name: "mail-booking-user",
					Run: func(ctx context.Context) error {
						return s.Notifier.Send(ctx, notify.Message{
							To:       email,
							Subject:  "Your Vallit Consultation is Confirmed",
							HTMLBody: notify.BookingUserBody(data),
						})
					},
				},
				{
					Name: "mail-booking-admin",
					Run: func(ctx context.Context) error {
						return s.Notifier.Send(ctx, notify.Message{
							To:       s.AdminEmail,
							ReplyTo:  email,
							Subject:  fmt.Sprintf("New Booking: %s (%s)", name, formatDateDE(when)),
							HTMLBody: notify.BookingAdminBody(data),
						})
					},
				},
			}
			return mandatory, bestEffort
		},
	})
	if out.Admitted() {
		span.SetAttributes(attribute.String("appointment.id", apptID))
	}
	return apptID, out
}

var (
	weekdaysDE = [...]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"}
	monthsDE   = [...]string{"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli", "August", "September", "Oktober", "November", "Dezember"}
)

// formatDateDE renders a timestamp as a long German date, e.g.
// "Montag, 14. September 2026".
func formatDateDE(t time.Time) string {
	return fmt.Sprintf("%s, %d. %s %d", weekdaysDE[t.Weekday()], t.Day(), monthsDE[t.Month()-1], t.Year())
}
