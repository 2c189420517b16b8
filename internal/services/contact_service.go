// Package services – ContactService
//
// This file implements the contact form flow: validate the lead, persist the
// entry (mandatory), and notify the admin inbox plus send the visitor a
// receipt (best-effort).
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/domain"
	"github.com/vallit/go-site-backend/internal/notify"
	"github.com/vallit/go-site-backend/internal/pipeline"
	"github.com/vallit/go-site-backend/internal/repo"

	"go.opentelemetry.io/otel"
)

// ContactService coordinates contact form submissions.
type ContactService struct {
	DB       *gorm.DB
	Pipeline *pipeline.Pipeline

	Notifier   notify.Notifier
	AdminEmail string

	Logger zerolog.Logger
}

var contactContract = pipeline.Contract{
	{Name: "name", Required: true, Kind: pipeline.KindString},
	{Name: "company", Required: true, Kind: pipeline.KindString},
	{Name: "email", Required: true, Kind: pipeline.KindEmail},
	{Name: "teamSize", Kind: pipeline.KindString},
	{Name: "interest", Kind: pipeline.KindString},
	{Name: "message", Kind: pipeline.KindString},
}

// Submit validates and persists one contact entry.
func (s *ContactService) Submit(ctx context.Context, body map[string]any) pipeline.Outcome {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "Submit")
	defer span.End()

	return s.Pipeline.Run(ctx, pipeline.Submission{
		Contract: contactContract,
		Body:     body,
		Effects: func(p pipeline.Payload) (mandatory, bestEffort []pipeline.Effect) {
			entry := &domain.ContactEntry{
				Name:     p.String("name"),
				Company:  p.String("company"),
				Email:    p.String("email"),
				TeamSize: p.String("teamSize"),
				Interest: p.String("interest"),
				Message:  p.String("message"),
			}

			mandatory = []pipeline.Effect{{
				Name: "persist-contact",
				Run: func(ctx context.Context) error {
					return repo.CreateContactEntry(ctx, s.DB, entry)
				},
			}}
			if s.Notifier == nil {
				return mandatory, nil
			}

			data := notify.ContactData{
				Name:     entry.Name,
				Company:  entry.Company,
				Email:    entry.Email,
				TeamSize: entry.TeamSize,
				Interest: entry.Interest,
				Message:  notify.MultilineHTML(entry.Message),
			}
			bestEffort = []pipeline.Effect{
				{
					Name: "mail-contact-admin",
					Run: func(ctx context.Context) error {
						return s.Notifier.Send(ctx, notify.Message{
							To:       s.AdminEmail,
							ReplyTo:  entry.Email,
							Subject:  fmt.Sprintf("New Lead: %s (%s)", entry.Name, entry.Company),
							HTMLBody: notify.ContactAdminBody(data),
						})
					},
				},
				{
					Name: "mail-contact-user",
					Run: func(ctx context.Context) error {
						return s.Notifier.Send(ctx, notify.Message{
							To:       entry.Email,
							Subject:  "We received your inquiry",
							HTMLBody: notify.ContactUserBody(data),
						})
					},
				},
			}
			return mandatory, bestEffort
		},
	})
}
