package goAccounts

import (
	"strings"
	"testing"
	"time"
)

// rfcSecret is the RFC 6238 SHA-1 test secret "12345678901234567890" in
// unpadded base32.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestOtpCodeRFCVectors(t *testing.T) {
	// The RFC 6238 appendix lists 8-digit codes; the 6-digit code is the
	// same truncated value mod 10^6.
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	for _, tc := range cases {
		code, err := otpCode(rfcSecret, time.Unix(tc.ts, 0), 0)
		if err != nil {
			t.Fatalf("otpCode at t=%d failed: %v", tc.ts, err)
		}
		if code != tc.code {
			t.Fatalf("otpCode at t=%d = %q, want %q", tc.ts, code, tc.code)
		}
	}
}

func TestOtpCodeRejectsMalformedSecret(t *testing.T) {
	if _, err := otpCode("not base32!!", time.Now(), 0); err == nil {
		t.Fatal("expected error for malformed secret")
	}
}

func TestIsValidOtpCodeSkewWindow(t *testing.T) {
	now := time.Unix(1111111111, 0)

	for offset := -1; offset <= 1; offset++ {
		code, err := otpCode(rfcSecret, now, offset)
		if err != nil {
			t.Fatalf("otpCode offset %d failed: %v", offset, err)
		}
		if !isValidOtpCode(code, rfcSecret, now) {
			t.Fatalf("expected code at offset %d to validate", offset)
		}
	}
}

func TestIsValidOtpCodeRejectsOutsideWindow(t *testing.T) {
	now := time.Unix(1111111111, 0)

	for _, offset := range []int{-2, 2, 5} {
		code, err := otpCode(rfcSecret, now, offset)
		if err != nil {
			t.Fatalf("otpCode offset %d failed: %v", offset, err)
		}

		// Codes at distant steps can coincide with an in-window code by
		// chance; only assert rejection when they differ.
		inWindow := false
		for w := -1; w <= 1; w++ {
			windowCode, _ := otpCode(rfcSecret, now, w)
			if windowCode == code {
				inWindow = true
			}
		}
		if inWindow {
			continue
		}

		if isValidOtpCode(code, rfcSecret, now) {
			t.Fatalf("expected code at offset %d to be rejected", offset)
		}
	}
}

func TestIsValidOtpCodeRejectsGarbage(t *testing.T) {
	if isValidOtpCode("000000x", rfcSecret, time.Now()) {
		t.Fatal("expected malformed candidate to be rejected")
	}
	if isValidOtpCode("", rfcSecret, time.Now()) {
		t.Fatal("expected empty candidate to be rejected")
	}
}

func TestGenerateSharedOtpSecretFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		secret, err := generateSharedOtpSecret()
		if err != nil {
			t.Fatalf("generateSharedOtpSecret failed: %v", err)
		}
		if len(secret) != otpSecretChars {
			t.Fatalf("secret length = %d, want %d", len(secret), otpSecretChars)
		}
		for _, r := range secret {
			if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567", r) {
				t.Fatalf("secret contains invalid character %q", r)
			}
		}
		if seen[secret] {
			t.Fatal("generated duplicate secret")
		}
		seen[secret] = true
	}
}

func TestGenerateBackupCodesFormat(t *testing.T) {
	codes, err := generateBackupCodes()
	if err != nil {
		t.Fatalf("generateBackupCodes failed: %v", err)
	}
	if len(codes) != backupCodeCount {
		t.Fatalf("got %d codes, want %d", len(codes), backupCodeCount)
	}
	for _, code := range codes {
		if len(code) != backupCodeBytes*3 {
			t.Fatalf("code %q has length %d, want %d", code, len(code), backupCodeBytes*3)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
	}
}
