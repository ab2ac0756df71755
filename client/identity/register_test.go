package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"enlechat/models"
)

type fakeOTP struct {
	calls []models.OTPRequest
	resp  models.OTPResponse
}

var _ OTPSender = (*fakeOTP)(nil)

func (f *fakeOTP) SendOTP(_ context.Context, req models.OTPRequest) (*models.OTPResponse, error) {
	f.calls = append(f.calls, req)
	r := f.resp
	return &r, nil
}

func newRegistration(sender *fakeOTP) *Registration {
	r := NewRegistration(sender)
	r.generate = func() string { return "424242" }
	return r
}

func TestSendOTPValidatesEmailFirst(t *testing.T) {
	sender := &fakeOTP{resp: models.OTPResponse{Success: true}}
	r := newRegistration(sender)

	require.ErrorIs(t, r.SendOTP(context.Background(), "not-an-email", "alice"), ErrInvalidEmail)
	require.Empty(t, sender.calls)

	require.NoError(t, r.SendOTP(context.Background(), "alice@example.com", ""))
	require.Len(t, sender.calls, 1)
	require.Equal(t, "User", sender.calls[0].Username)
	require.Equal(t, "424242", sender.calls[0].OTP)
	require.True(t, r.Sent())
}

func TestSendOTPRejectedByBackend(t *testing.T) {
	sender := &fakeOTP{resp: models.OTPResponse{Success: false, Message: "mailer down"}}
	r := newRegistration(sender)

	err := r.SendOTP(context.Background(), "alice@example.com", "alice")
	require.ErrorIs(t, err, ErrOTPFailed)
	require.Contains(t, err.Error(), "mailer down")
	require.False(t, r.Sent())
}

func TestValidate(t *testing.T) {
	sender := &fakeOTP{resp: models.OTPResponse{Success: true}}
	r := newRegistration(sender)
	form := Form{Username: "alice", Email: "alice@example.com", Password: "pw", Confirm: "pw", OTP: "424242"}

	require.ErrorIs(t, r.Validate(form), ErrOTPNotSent)

	mismatch := form
	mismatch.Confirm = "other"
	require.ErrorIs(t, r.Validate(mismatch), ErrPasswordMismatch)

	require.NoError(t, r.SendOTP(context.Background(), form.Email, form.Username))

	wrong := form
	wrong.OTP = "000000"
	require.ErrorIs(t, r.Validate(wrong), ErrInvalidOTP)
	require.NoError(t, r.Validate(form))

	req := form.Request()
	require.Equal(t, models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"}, req)
}

func TestGeneratedOTPIsSixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		require.Regexp(t, `^\d{6}$`, generateOTP())
	}
}
