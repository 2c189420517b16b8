// Package services – DataRequestService
//
// This file implements the GDPR data request flow (access or deletion):
// validate the request, persist it with status PENDING (mandatory), and mail
// the admin plus the requester's confirmation carrying the reference id
// (best-effort). The reference id is generated up front so the mails and the
// stored row always agree.
package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/domain"
	"github.com/vallit/go-site-backend/internal/notify"
	"github.com/vallit/go-site-backend/internal/pipeline"
	"github.com/vallit/go-site-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DataRequestService coordinates GDPR access/deletion requests.
type DataRequestService struct {
	DB       *gorm.DB
	Pipeline *pipeline.Pipeline

	Notifier   notify.Notifier
	AdminEmail string

	Logger zerolog.Logger
}

var dataRequestContract = pipeline.Contract{
	{Name: "email", Required: true, Kind: pipeline.KindEmail},
	{Name: "type", Required: true, Kind: pipeline.KindEnum, Allowed: []string{domain.RequestTypeAccess, domain.RequestTypeDelete}},
}

// Submit validates and persists one data request. On admission the returned
// id is the reference the requester can quote.
func (s *DataRequestService) Submit(ctx context.Context, body map[string]any) (string, pipeline.Outcome) {
	tr := otel.Tracer("services/DataRequestService")
	ctx, span := tr.Start(ctx, "Submit")
	defer span.End()

	requestID := uuid.NewString()
	out := s.Pipeline.Run(ctx, pipeline.Submission{
		Contract: dataRequestContract,
		Body:     body,
		Effects: func(p pipeline.Payload) (mandatory, bestEffort []pipeline.Effect) {
			email := p.String("email")
			requestType := p.String("type")

			mandatory = []pipeline.Effect{{
				Name: "persist-data-request",
				Run: func(ctx context.Context) error {
					return repo.CreateDataRequest(ctx, s.DB, &domain.DataRequest{
						ID:          requestID,
						Email:       email,
						RequestType: requestType,
					})
				},
			}}
			if s.Notifier == nil {
				return mandatory, nil
			}

			data := notify.DataRequestData{
				Type:      requestType,
				Verb:      requestVerb(requestType),
				Email:     email,
				RequestID: requestID,
			}
			bestEffort = []pipeline.Effect{
				{
					Name: "mail-data-request-admin",
					Run: func(ctx context.Context) error {
						return s.Notifier.Send(ctx, notify.Message{
							To:       s.AdminEmail,
							ReplyTo:  email,
							Subject:  "GDPR Data Request: " + requestType,
							HTMLBody: notify.DataRequestAdminBody(data),
						})
					},
				},
				{
					Name: "mail-data-request-user",
					Run: func(ctx context.Context) error {
						return s.Notifier.Send(ctx, notify.Message{
							To:       email,
							Subject:  "Your Data Request Confirmation - Vallit",
							HTMLBody: notify.DataRequestUserBody(data),
						})
					},
				},
			}
			return mandatory, bestEffort
		},
	})
	if !out.Admitted() {
		return "", out
	}
	span.SetAttributes(attribute.String("request.id", requestID))
	return requestID, out
}

// requestVerb maps the stored request type to the verb used in the
// requester's confirmation mail.
func requestVerb(requestType string) string {
	if strings.EqualFold(requestType, domain.RequestTypeDelete) {
		return "delete"
	}
	return "access"
}
