// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the submission
// records created by the form endpoints: appointments, contact entries, and
// GDPR data requests.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/domain"
)

// CreateAppointment inserts a booking row. Date is stored in UTC.
func CreateAppointment(ctx context.Context, db *gorm.DB, name, email, company, topic string, date time.Time) (*domain.Appointment, error) {
	a := &domain.Appointment{
		ID:      uuid.NewString(),
		Name:    name,
		Email:   email,
		Company: company,
		Topic:   topic,
		Date:    date.UTC(),
	}
	return a, db.WithContext(ctx).Create(a).Error
}

// CountAppointments returns the total number of bookings. The health endpoint
// uses it as a cheap store probe.
func CountAppointments(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM appointments WHERE deleted_at IS NULL").
		Scan(&total).Error
	return total, err
}

// CreateContactEntry inserts a contact form submission.
func CreateContactEntry(ctx context.Context, db *gorm.DB, e *domain.ContactEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(e).Error
}

// CreateDataRequest inserts a GDPR request row. A missing ID is generated and
// a missing status defaults to PENDING; callers that mail the reference id
// out pre-generate the ID themselves.
func CreateDataRequest(ctx context.Context, db *gorm.DB, r *domain.DataRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = "PENDING"
	}
	return db.WithContext(ctx).Create(r).Error
}
