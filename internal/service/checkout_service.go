package service

import (
	"context"
	"errors"
	"log"
	"os"

	"duka/internal/domain"
	"duka/internal/models"
	"duka/pkg/audit"
	"duka/pkg/mpesa"

	"github.com/google/uuid"
)

// Caller-facing failure copy. Configuration and gateway-rejection messages
// carry actionable detail; auth and transport faults stay generic so no
// internal or gateway detail leaks to the end user.
const (
	msgAuthUnavailable = "Could not reach the payment service. Please try again shortly."
	msgRejected        = "The payment could not be processed. Please try again."
	msgUnexpected      = "Something went wrong while processing your payment. Please try again."
)

// Outcome is the only value that crosses into the UI layer.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PaymentStore persists one row per push attempt.
type PaymentStore interface {
	Create(*models.Payment) error
	Update(*models.Payment) error
}

// CheckoutService runs the payment-initiation pipeline:
// credentials -> token -> build -> submit, strictly sequential and
// short-circuiting, with an audit entry after every stage transition.
type CheckoutService struct {
	gateway  *mpesa.Client
	payments PaymentStore
	trail    *audit.Trail
	getenv   func(string) string
}

func NewCheckoutService(gateway *mpesa.Client, payments PaymentStore, trail *audit.Trail) *CheckoutService {
	return &CheckoutService{
		gateway:  gateway,
		payments: payments,
		trail:    trail,
		getenv:   os.Getenv,
	}
}

// attempt is the state threaded through the pipeline. Everything here is
// created fresh per checkout and discarded after the outcome is returned.
type attempt struct {
	userID  uint
	phone   string
	amount  float64
	ref     string
	creds   mpesa.Credentials
	token   string
	request *mpesa.STKPushRequest
	resp    *mpesa.STKPushResponse
	record  *models.Payment
}

type stage struct {
	name string
	run  func(ctx context.Context, a *attempt) error
}

// InitiatePayment pushes an STK prompt to phone for amount KES and reduces
// the whole pipeline into the two-field outcome. Success means the push was
// accepted by the gateway, not that the customer has paid.
func (s *CheckoutService) InitiatePayment(ctx context.Context, userID uint, phone string, amount float64) Outcome {
	a := &attempt{
		userID: userID,
		phone:  phone,
		amount: amount,
		ref:    "duka-" + uuid.New().String(),
	}
	s.trail.Append("payment attempt started ref=%s phone=%s amount=%.2f", a.ref, phone, amount)

	stages := []stage{
		{"credentials", s.loadCredentials},
		{"token", s.acquireToken},
		{"build", s.buildRequest},
		{"submit", s.submit},
	}
	for _, st := range stages {
		if err := st.run(ctx, a); err != nil {
			s.trail.Append("payment stage %s failed ref=%s: %v", st.name, a.ref, err)
			out := outcomeFor(err)
			s.markFailed(a, out.Error)
			s.trail.Append("payment failed ref=%s: %s", a.ref, out.Error)
			return out
		}
		s.trail.Append("payment stage %s complete ref=%s", st.name, a.ref)
	}

	s.markAccepted(a)
	s.trail.Append("payment accepted ref=%s checkout_request_id=%s", a.ref, a.resp.CheckoutRequestID)
	return Outcome{Success: true}
}

func (s *CheckoutService) loadCredentials(_ context.Context, a *attempt) error {
	creds, err := mpesa.LoadCredentials(s.getenv)
	if err != nil {
		return err
	}
	a.creds = creds
	return nil
}

func (s *CheckoutService) acquireToken(ctx context.Context, a *attempt) error {
	token, err := s.gateway.Authenticate(ctx, a.creds)
	if err != nil {
		return err
	}
	a.token = token
	return nil
}

// buildRequest is pure aside from the payment row it records: phone
// normalization, timestamp, password digest, and rounding never fail.
func (s *CheckoutService) buildRequest(_ context.Context, a *attempt) error {
	a.request = mpesa.BuildSTKPush(a.creds, a.phone, a.amount, s.gateway.Now())
	record := &models.Payment{
		UserID:      a.userID,
		AmountCents: a.request.Amount * 100,
		Currency:    "KES",
		Phone:       a.request.PhoneNumber,
		Provider:    "mpesa_daraja",
		ProviderRef: a.ref,
		Status:      domain.PaymentStatusPending,
	}
	if err := s.payments.Create(record); err != nil {
		// Best effort, same as the audit trail: a storage fault must not
		// change the payment outcome.
		log.Printf("[checkout] payment record create failed ref=%s: %v", a.ref, err)
		return nil
	}
	a.record = record
	return nil
}

func (s *CheckoutService) submit(ctx context.Context, a *attempt) error {
	resp, err := s.gateway.STKPush(ctx, a.token, a.request)
	if err != nil {
		return err
	}
	a.resp = resp
	return nil
}

func (s *CheckoutService) markAccepted(a *attempt) {
	if a.record == nil {
		return
	}
	a.record.CheckoutRequestID = a.resp.CheckoutRequestID
	if err := s.payments.Update(a.record); err != nil {
		log.Printf("[checkout] payment record update failed ref=%s: %v", a.ref, err)
	}
}

func (s *CheckoutService) markFailed(a *attempt, reason string) {
	if a.record == nil {
		return
	}
	a.record.Status = domain.PaymentStatusFailed
	a.record.FailureReason = reason
	if err := s.payments.Update(a.record); err != nil {
		log.Printf("[checkout] payment record update failed ref=%s: %v", a.ref, err)
	}
}

// outcomeFor maps the error taxonomy to caller-facing messages.
func outcomeFor(err error) Outcome {
	var cfgErr *mpesa.ConfigError
	if errors.As(err, &cfgErr) {
		return Outcome{Error: cfgErr.Error()}
	}
	var authErr *mpesa.AuthError
	if errors.As(err, &authErr) {
		return Outcome{Error: msgAuthUnavailable}
	}
	var rejErr *mpesa.RejectedError
	if errors.As(err, &rejErr) {
		if rejErr.Message != "" {
			return Outcome{Error: rejErr.Message}
		}
		if rejErr.Description != "" {
			return Outcome{Error: rejErr.Description}
		}
		return Outcome{Error: msgRejected}
	}
	var transErr *mpesa.TransportError
	if errors.As(err, &transErr) {
		return Outcome{Error: msgUnexpected}
	}
	return Outcome{Error: msgUnexpected}
}
