package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"enlechat/models"
)

var (
	ErrInvalidEmail     = errors.New("please enter a valid email address")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrOTPNotSent       = errors.New("please verify your email with OTP first")
	ErrInvalidOTP       = errors.New("invalid OTP, please check and try again")
	ErrOTPFailed        = errors.New("failed to send OTP")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// OTPSender posts a one-time code for delivery by email.
type OTPSender interface {
	SendOTP(ctx context.Context, req models.OTPRequest) (*models.OTPResponse, error)
}

// Form is the registration form as typed by the user.
type Form struct {
	Username string
	Email    string
	Password string
	Confirm  string
	OTP      string
}

// Request strips the confirmation and the code.
func (f Form) Request() models.RegisterRequest {
	return models.RegisterRequest{
		Username: strings.TrimSpace(f.Username),
		Email:    strings.TrimSpace(f.Email),
		Password: f.Password,
	}
}

// Registration tracks the one-time code for a single sign-up attempt. The
// code is generated here and only its delivery goes through the backend.
type Registration struct {
	api      OTPSender
	generate func() string

	mu       sync.Mutex
	code     string
	sent     bool
	verified bool
}

func NewRegistration(api OTPSender) *Registration {
	return &Registration{api: api, generate: generateOTP}
}

func generateOTP() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}

func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// SendOTP generates a fresh code and asks the backend to mail it. Calling
// it again resends a new code.
func (r *Registration) SendOTP(ctx context.Context, email, username string) error {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(username) == "" {
		username = "User"
	}

	code := r.generate()
	resp, err := r.api.SendOTP(ctx, models.OTPRequest{Email: email, OTP: code, Username: username})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOTPFailed, err)
	}
	if !resp.Success {
		if resp.Message != "" {
			return fmt.Errorf("%w: %s", ErrOTPFailed, resp.Message)
		}
		return ErrOTPFailed
	}

	r.mu.Lock()
	r.code = code
	r.sent = true
	r.verified = false
	r.mu.Unlock()
	return nil
}

func (r *Registration) Sent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Verify checks code against the last code sent.
func (r *Registration) Verify(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sent {
		return ErrOTPNotSent
	}
	if r.verified {
		return nil
	}
	if strings.TrimSpace(code) == "" || strings.TrimSpace(code) != r.code {
		return ErrInvalidOTP
	}
	r.verified = true
	return nil
}

// Validate runs the local checks that gate the register call.
func (r *Registration) Validate(f Form) error {
	if !ValidEmail(strings.TrimSpace(f.Email)) {
		return ErrInvalidEmail
	}
	if f.Password != f.Confirm {
		return ErrPasswordMismatch
	}
	return r.Verify(f.OTP)
}
