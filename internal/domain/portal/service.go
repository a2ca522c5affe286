package portal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetpms/vetpms/internal/domain/appointment"
	"github.com/vetpms/vetpms/internal/domain/client"
	"github.com/vetpms/vetpms/internal/domain/invoice"
	"github.com/vetpms/vetpms/internal/domain/patient"
	"github.com/vetpms/vetpms/internal/domain/prescription"
	"github.com/vetpms/vetpms/internal/platform/auth"
)

const minPasswordLength = 10

// The portal composes over the staff-facing domains; these are the slices it
// needs. The concrete domain services satisfy them directly.
type (
	ClientDirectory interface {
		Get(ctx context.Context, id uuid.UUID) (*client.Client, error)
	}
	PatientDirectory interface {
		Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
		List(ctx context.Context, filter patient.ListFilter, limit, offset int) ([]*patient.Patient, int, error)
	}
	AppointmentBook interface {
		Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
		Create(ctx context.Context, a *appointment.Appointment) error
		List(ctx context.Context, filter appointment.ListFilter, limit, offset int) ([]*appointment.Appointment, int, error)
		ChangeStatus(ctx context.Context, id uuid.UUID, newStatus string, actorID *uuid.UUID, note *string) (*appointment.Appointment, error)
	}
	InvoiceBook interface {
		Get(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
		List(ctx context.Context, filter invoice.ListFilter, limit, offset int) ([]*invoice.Invoice, int, error)
	}
	PrescriptionBook interface {
		List(ctx context.Context, filter prescription.ListFilter, limit, offset int) ([]*prescription.Prescription, int, error)
	}
)

type Service struct {
	repo          Repository
	clients       ClientDirectory
	patients      PatientDirectory
	appointments  AppointmentBook
	invoices      InvoiceBook
	prescriptions PrescriptionBook
	jwtSecret     []byte
	tokenTTL      time.Duration
}

func NewService(
	repo Repository,
	clients ClientDirectory,
	patients PatientDirectory,
	appointments AppointmentBook,
	invoices InvoiceBook,
	prescriptions PrescriptionBook,
	jwtSecret []byte,
	tokenTTL time.Duration,
) *Service {
	return &Service{
		repo:          repo,
		clients:       clients,
		patients:      patients,
		appointments:  appointments,
		invoices:      invoices,
		prescriptions: prescriptions,
		jwtSecret:     jwtSecret,
		tokenTTL:      tokenTTL,
	}
}

// IssueInvite creates a single-use registration code for a client. Staff
// hand the code to the pet owner out of band.
func (s *Service) IssueInvite(ctx context.Context, clientID uuid.UUID, ttl time.Duration) (*Invite, error) {
	if _, err := s.clients.Get(ctx, clientID); err != nil {
		return nil, ErrNotFound
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate invite code: %w", err)
	}
	inv := &Invite{
		Code:      hex.EncodeToString(buf),
		ClientID:  clientID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := s.repo.CreateInvite(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Register redeems an invite code into a portal account.
func (s *Service) Register(ctx context.Context, code, email, password string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	inv, err := s.repo.GetInvite(ctx, code)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !inv.usable(now) {
		return nil, ErrInvalidInvite
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &Account{
		ClientID:     inv.ClientID,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.MarkInviteUsed(ctx, code, now); err != nil {
		return nil, err
	}
	return a, nil
}

// Login verifies credentials and returns a signed Bearer token. Repeated
// failures lock the account for a cooling-off period.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Account, error) {
	a, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		// Burn a verification anyway so missing accounts cost the same.
		_ = auth.VerifyPassword(password, "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
		return "", nil, ErrInvalidCredentials
	}
	now := time.Now().UTC()
	if !a.Active {
		return "", nil, ErrInvalidCredentials
	}
	if a.locked(now) {
		return "", nil, ErrAccountLocked
	}

	if err := auth.VerifyPassword(password, a.PasswordHash); err != nil {
		a.FailedLogins++
		if a.FailedLogins >= maxFailedLogins {
			until := now.Add(lockoutWindow)
			a.LockedUntil = &until
			a.FailedLogins = 0
		}
		_ = s.repo.UpdateAccount(ctx, a)
		return "", nil, ErrInvalidCredentials
	}

	a.FailedLogins = 0
	a.LockedUntil = nil
	a.LastLoginAt = &now
	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return "", nil, err
	}

	token, err := auth.IssuePortalToken(s.jwtSecret, a.ID, a.ClientID, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, a, nil
}

func (s *Service) Account(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	return s.repo.GetAccountByID(ctx, accountID)
}

// MyClient returns the caller's own client record.
func (s *Service) MyClient(ctx context.Context, clientID uuid.UUID) (*client.Client, error) {
	return s.clients.Get(ctx, clientID)
}

func (s *Service) MyPatients(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*patient.Patient, int, error) {
	return s.patients.List(ctx, patient.ListFilter{ClientID: clientID}, limit, offset)
}

// MyPatient fetches one of the caller's patients. A foreign patient ID is
// indistinguishable from a missing one.
func (s *Service) MyPatient(ctx context.Context, clientID, patientID uuid.UUID) (*patient.Patient, error) {
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, ErrNotFound
	}
	if p.ClientID != clientID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) MyAppointments(ctx context.Context, clientID uuid.UUID, status string, limit, offset int) ([]*appointment.Appointment, int, error) {
	return s.appointments.List(ctx, appointment.ListFilter{ClientID: clientID, Status: status}, limit, offset)
}

func (s *Service) MyAppointment(ctx context.Context, clientID, apptID uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.appointments.Get(ctx, apptID)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.ClientID != clientID {
		return nil, ErrNotFound
	}
	return a, nil
}

// CancelAppointment lets the owner cancel an appointment that has not begun
// (scheduled or confirmed only).
func (s *Service) CancelAppointment(ctx context.Context, clientID, apptID uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.MyAppointment(ctx, clientID, apptID)
	if err != nil {
		return nil, err
	}
	if a.Status != appointment.StatusScheduled && a.Status != appointment.StatusConfirmed {
		return nil, ErrNotCancellable
	}
	note := "cancelled by owner via portal"
	return s.appointments.ChangeStatus(ctx, apptID, appointment.StatusCancelled, nil, &note)
}

func (s *Service) MyInvoices(ctx context.Context, clientID uuid.UUID, status string, limit, offset int) ([]*invoice.Invoice, int, error) {
	return s.invoices.List(ctx, invoice.ListFilter{ClientID: clientID, Status: status}, limit, offset)
}

func (s *Service) MyInvoice(ctx context.Context, clientID, invoiceID uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, ErrNotFound
	}
	if inv.ClientID != clientID {
		return nil, ErrNotFound
	}
	return inv, nil
}

// MyPrescriptions lists prescriptions for one of the caller's patients.
func (s *Service) MyPrescriptions(ctx context.Context, clientID, patientID uuid.UUID, limit, offset int) ([]*prescription.Prescription, int, error) {
	if _, err := s.MyPatient(ctx, clientID, patientID); err != nil {
		return nil, 0, err
	}
	return s.prescriptions.List(ctx, prescription.ListFilter{PatientID: patientID}, limit, offset)
}

// RequestAppointment records a proposed slot for staff to act on.
func (s *Service) RequestAppointment(ctx context.Context, clientID uuid.UUID, req *AppointmentRequest) error {
	req.ClientID = clientID
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := s.MyPatient(ctx, clientID, req.PatientID); err != nil {
		return err
	}
	req.Status = RequestPending
	return s.repo.CreateRequest(ctx, req)
}

func (s *Service) MyRequests(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*AppointmentRequest, int, error) {
	return s.repo.ListRequests(ctx, RequestFilter{ClientID: clientID}, limit, offset)
}

// ListRequests is the staff view over pending portal requests.
func (s *Service) ListRequests(ctx context.Context, filter RequestFilter, limit, offset int) ([]*AppointmentRequest, int, error) {
	return s.repo.ListRequests(ctx, filter, limit, offset)
}

// ApproveRequest books the appointment a client asked for and links it back
// to the request. Staff pick the vet and the exact slot.
func (s *Service) ApproveRequest(ctx context.Context, requestID, vetID uuid.UUID, apptType string, start, end time.Time, note *string) (*AppointmentRequest, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestPending {
		return nil, ErrRequestState
	}

	reason := req.Reason
	appt := &appointment.Appointment{
		ClientID:       req.ClientID,
		PatientID:      req.PatientID,
		VetID:          vetID,
		Type:           apptType,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Reason:         &reason,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, err
	}

	req.Status = RequestApproved
	req.AppointmentID = &appt.ID
	req.StaffNote = note
	if err := s.repo.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) DeclineRequest(ctx context.Context, requestID uuid.UUID, note *string) (*AppointmentRequest, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestPending {
		return nil, ErrRequestState
	}
	req.Status = RequestDeclined
	req.StaffNote = note
	if err := s.repo.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}
