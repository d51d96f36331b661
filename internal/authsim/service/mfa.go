package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
	"github.com/devharness/authsim/pkg/cryptox"
)

const (
	// BackupCodeCount is the number of backup codes issued per enrollment.
	BackupCodeCount = 10

	// backupCodeLen is the length of each backup code.
	backupCodeLen = 8

	backupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// MFAService manages TOTP enrollment, code verification, and single-use
// backup codes.
type MFAService struct {
	Users       store.Users
	BackupCodes store.BackupCodes

	// Issuer is the name embedded in provisioning URIs and shown by
	// authenticator apps.
	Issuer string

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *MFAService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Enroll generates a fresh TOTP secret for the user and stores it in a
// pending state. MFA is not active until Activate proves the user can
// produce a valid code. Re-enrolling before activation replaces the
// pending secret.
func (s *MFAService) Enroll(ctx context.Context, userID string) (domain.MFAEnrollment, error) {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	if user.MFAActive() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyActive
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	if err := s.Users.UpdateMFASecret(ctx, userID, key.Secret()); err != nil {
		return domain.MFAEnrollment{}, err
	}

	qr, err := qrCodeDataURL(key)
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	return domain.MFAEnrollment{
		Secret:  key.Secret(),
		QRCode:  qr,
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: user.Email,
	}, nil
}

// Activate verifies a TOTP code against the pending secret and, on
// success, marks MFA active and issues a set of single-use backup codes.
// The plaintext codes are returned exactly once.
func (s *MFAService) Activate(ctx context.Context, userID string, code string) ([]string, error) {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAActive() {
		return nil, ErrMFAAlreadyActive
	}
	if user.MFASecret == nil {
		return nil, ErrMFANotEnrolled
	}

	ok, err := s.VerifyCode(*user.MFASecret, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidMFACode
	}

	codes, err := GenerateBackupCodes(BackupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = cryptox.FingerprintToken(c)
	}
	if err := s.BackupCodes.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		return nil, err
	}

	if err := s.Users.EnableMFA(ctx, userID, s.now()); err != nil {
		return nil, err
	}
	return codes, nil
}

// Disable verifies a current TOTP or backup code, then clears the secret,
// the active flag, and all remaining backup codes.
func (s *MFAService) Disable(ctx context.Context, userID string, code string) error {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAActive() || user.MFASecret == nil {
		return ErrMFANotEnrolled
	}

	ok, err := s.Verify(ctx, user, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidMFACode
	}

	if err := s.BackupCodes.DeleteBackupCodes(ctx, userID); err != nil {
		return err
	}
	return s.Users.DisableMFA(ctx, userID)
}

// Verify checks a code for a user with active MFA. TOTP codes are tried
// first; anything else falls through to the backup codes, consuming the
// matching code on success.
func (s *MFAService) Verify(ctx context.Context, user domain.User, code string) (bool, error) {
	if user.MFASecret == nil {
		return false, ErrMFANotEnrolled
	}

	ok, err := s.VerifyCode(*user.MFASecret, code)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	return s.BackupCodes.ConsumeBackupCode(ctx, user.ID, cryptox.FingerprintToken(NormalizeBackupCode(code)))
}

// VerifyCode validates a TOTP code against a secret, allowing one period
// of clock skew in either direction.
func (s *MFAService) VerifyCode(secret, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// RemainingBackupCodes reports how many unused backup codes the user has.
func (s *MFAService) RemainingBackupCodes(ctx context.Context, userID string) (int, error) {
	return s.BackupCodes.CountBackupCodes(ctx, userID)
}

// GenerateBackupCodes produces n pairwise-distinct codes drawn from an
// unambiguous uppercase alphanumeric alphabet.
func GenerateBackupCodes(n int) ([]string, error) {
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		code, err := randomBackupCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// NormalizeBackupCode upper-cases a submitted code and strips whitespace
// and hyphens, so "ab12-cd34" matches "AB12CD34".
func NormalizeBackupCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func randomBackupCode() (string, error) {
	buf := make([]byte, backupCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = backupCodeAlphabet[int(b)%len(backupCodeAlphabet)]
	}
	return string(buf), nil
}

func qrCodeDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(256, 256)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
