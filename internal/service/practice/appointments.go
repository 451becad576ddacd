package practice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/sanitize"
)

// RequestAppointmentInput contains appointment request data
type RequestAppointmentInput struct {
	CaseID       string    `json:"caseId" binding:"required"`
	Date         time.Time `json:"date" binding:"required"`
	Purpose      string    `json:"purpose" binding:"required"`
	ActingUserID string    `json:"-"`
}

// RequestAppointment books a pending appointment on an open case and tells
// the counterpart
func (s *Service) RequestAppointment(ctx context.Context, input *RequestAppointmentInput) (*domain.Appointment, error) {
	purpose := sanitize.Line(input.Purpose)
	if input.Date.IsZero() {
		return nil, apperrors.MissingFieldError("date")
	}
	if purpose == "" {
		return nil, apperrors.MissingFieldError("purpose")
	}

	c, err := s.getCase(ctx, input.CaseID)
	if err != nil {
		return nil, err
	}
	if !s.canAct(input.ActingUserID, c.ClientID) {
		return nil, apperrors.ForbiddenError("Not allowed to book on this case")
	}
	if c.Status == domain.CaseStatusClosed {
		return nil, apperrors.ConflictError("Case is closed")
	}

	now := s.now()
	appointment := domain.Appointment{
		ID:        s.newID(),
		CaseID:    c.ID,
		ClientID:  c.ClientID,
		Date:      input.Date.UTC(),
		Purpose:   purpose,
		Status:    domain.AppointmentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, docstore.CollectionAppointments, appointment.ID, appointment); err != nil {
		return nil, docstore.AsAppError(err, "Appointment")
	}

	s.notifier.Notify(ctx, s.counterpartOf(input.ActingUserID, c.ClientID),
		fmt.Sprintf("New appointment request for case %s on %s: %s.", c.CaseNumber, appointment.Date.Format(dateLayout), purpose))
	return &appointment, nil
}

// UpdateAppointmentStatus confirms or cancels an appointment. Only the
// lawyer confirms; either party may cancel. A cancelled appointment is final.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, appointmentID, status, actingUserID string) (*domain.Appointment, error) {
	if status != domain.AppointmentConfirmed && status != domain.AppointmentCancelled {
		return nil, apperrors.InvalidInputError("Status must be confirmed or cancelled")
	}

	var appointment domain.Appointment
	err := s.store.Mutate(ctx, docstore.CollectionAppointments, appointmentID, &appointment, func() error {
		if !s.canAct(actingUserID, appointment.ClientID) {
			return apperrors.ForbiddenError("Not allowed to change this appointment")
		}
		if status == domain.AppointmentConfirmed && actingUserID != s.lawyerID {
			return apperrors.ForbiddenError("Only the lawyer can confirm an appointment")
		}
		if appointment.Status == status {
			return errNoChange
		}
		if appointment.Status == domain.AppointmentCancelled {
			return apperrors.ConflictError("Appointment is cancelled")
		}
		appointment.Status = status
		appointment.UpdatedAt = s.now()
		return nil
	})
	if errors.Is(err, errNoChange) {
		return &appointment, nil
	}
	if err != nil {
		return nil, docstore.AsAppError(err, "Appointment")
	}

	s.notifier.Notify(ctx, s.counterpartOf(actingUserID, appointment.ClientID),
		fmt.Sprintf("Your appointment on %s has been %s.", appointment.Date.Format(dateLayout), status))
	return &appointment, nil
}

// RescheduleAppointment moves an appointment to newDate and puts it back to
// pending for the counterpart to confirm
func (s *Service) RescheduleAppointment(ctx context.Context, appointmentID string, newDate time.Time, actingUserID string) (*domain.Appointment, error) {
	if newDate.IsZero() {
		return nil, apperrors.MissingFieldError("date")
	}
	newDate = newDate.UTC()

	var appointment domain.Appointment
	var previous time.Time
	err := s.store.Mutate(ctx, docstore.CollectionAppointments, appointmentID, &appointment, func() error {
		if !s.canAct(actingUserID, appointment.ClientID) {
			return apperrors.ForbiddenError("Not allowed to change this appointment")
		}
		if appointment.Status == domain.AppointmentCancelled {
			return apperrors.ConflictError("Appointment is cancelled")
		}
		previous = appointment.Date
		appointment.Date = newDate
		appointment.Status = domain.AppointmentPending
		appointment.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, docstore.AsAppError(err, "Appointment")
	}

	s.notifier.Notify(ctx, s.counterpartOf(actingUserID, appointment.ClientID),
		fmt.Sprintf("Your appointment on %s has been rescheduled to %s.", previous.Format(dateLayout), newDate.Format(dateLayout)))
	return &appointment, nil
}

// ListAppointments returns appointments in date order, optionally limited
// to one client
func (s *Service) ListAppointments(ctx context.Context, clientID string) ([]domain.Appointment, error) {
	if clientID == "" {
		return s.queryAppointments(ctx)
	}
	return s.queryAppointments(ctx, docstore.Eq("clientId", clientID))
}

func (s *Service) queryAppointments(ctx context.Context, filters ...docstore.Filter) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	if err := s.store.Query(ctx, docstore.CollectionAppointments, filters, &appointments); err != nil {
		return nil, docstore.AsAppError(err, "Appointment")
	}
	sort.SliceStable(appointments, func(i, j int) bool {
		return appointments[i].Date.Before(appointments[j].Date)
	})
	if appointments == nil {
		appointments = []domain.Appointment{}
	}
	return appointments, nil
}
