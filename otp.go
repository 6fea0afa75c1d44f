package goAccounts

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"time"
)

// One-time codes are fixed-format: 30-second time steps, 6 digits, HMAC-SHA1,
// shared secrets of 32 base32 characters (A-Z, 2-7). Validation tolerates one
// step of clock skew in either direction.
const (
	otpPeriod       = 30 * time.Second
	otpDigits       = 6
	otpSecretChars  = 32
	backupCodeCount = 10
	backupCodeBytes = 4
)

var otpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// otpCode computes the code for the time step at now shifted by offset steps.
func otpCode(secret string, now time.Time, offset int) (string, error) {
	key, err := otpEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: malformed otp secret", ErrInternal)
	}

	counter := now.Unix()/int64(otpPeriod.Seconds()) + int64(offset)
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226.
	start := sum[len(sum)-1] & 0x0f
	bin := (int(sum[start])&0x7f)<<24 |
		(int(sum[start+1])&0xff)<<16 |
		(int(sum[start+2])&0xff)<<8 |
		(int(sum[start+3]) & 0xff)

	return fmt.Sprintf("%0*d", otpDigits, bin%1_000_000), nil
}

// isValidOtpCode accepts the codes for the previous, current, and next time
// step. The window is a hard requirement, not an optimization: clients with
// skewed clocks must still be able to log in.
func isValidOtpCode(candidate, secret string, now time.Time) bool {
	valid := false
	for offset := -1; offset <= 1; offset++ {
		code, err := otpCode(secret, now, offset)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(code), []byte(candidate)) == 1 {
			valid = true
		}
	}
	return valid
}

// generateSharedOtpSecret returns a fresh 32-character base32 shared secret.
func generateSharedOtpSecret() (string, error) {
	raw := make([]byte, otpSecretChars*5/8)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return otpEncoding.EncodeToString(raw), nil
}

// generateBackupCodes returns a batch of ten unused codes. Each code is four
// random bytes rendered as zero-padded decimal, giving the daemon's
// historical 12-digit format.
func generateBackupCodes() ([]string, error) {
	codes := make([]string, 0, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		raw := make([]byte, backupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		code := ""
		for _, b := range raw {
			code += fmt.Sprintf("%03d", b)
		}
		codes = append(codes, code)
	}
	return codes, nil
}
