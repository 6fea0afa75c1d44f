package goAccounts

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// enableTwoFactorForTest walks the full enrollment flow and returns the
// shared secret and the first backup code batch.
func enableTwoFactorForTest(t *testing.T, engine *Engine, accountID uint64) (string, []string) {
	t.Helper()
	ctx := context.Background()

	secret, err := engine.GenerateTwoFactorKey(ctx, accountID)
	if err != nil {
		t.Fatalf("GenerateTwoFactorKey failed: %v", err)
	}

	code, err := otpCode(secret, engine.now(), 0)
	if err != nil {
		t.Fatalf("otpCode failed: %v", err)
	}
	backupCodes, err := engine.EnableTwoFactor(ctx, accountID, code)
	if err != nil {
		t.Fatalf("EnableTwoFactor failed: %v", err)
	}
	return secret, backupCodes
}

func TestEnableTwoFactorRequiresProofOfPossession(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeStore(), nil)
	account := createTestAccount(t, engine, "alice", "hunter2abc")

	if _, err := engine.EnableTwoFactor(ctx, account.ID, "123456"); !errors.Is(err, ErrTwoFactorDisabled) {
		t.Fatalf("expected ErrTwoFactorDisabled before key generation, got %v", err)
	}

	if _, err := engine.GenerateTwoFactorKey(ctx, account.ID); err != nil {
		t.Fatalf("GenerateTwoFactorKey failed: %v", err)
	}

	if _, err := engine.EnableTwoFactor(ctx, account.ID, "000000"); !errors.Is(err, ErrTwoFactorRequired) {
		t.Fatalf("expected ErrTwoFactorRequired for wrong code, got %v", err)
	}

	// A disabled secret does not gate logins.
	if _, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc",
	}); err != nil {
		t.Fatalf("login with disabled secret failed: %v", err)
	}
}

func TestEnableTwoFactorHandsBackupCodes(t *testing.T) {
	engine := newTestEngine(t, newFakeStore(), nil)
	account := createTestAccount(t, engine, "alice", "hunter2abc")

	_, backupCodes := enableTwoFactorForTest(t, engine, account.ID)
	if len(backupCodes) != backupCodeCount {
		t.Fatalf("got %d backup codes, want %d", len(backupCodes), backupCodeCount)
	}

	status, err := engine.TwoFactorStatus(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("TwoFactorStatus failed: %v", err)
	}
	if !status.Enabled {
		t.Fatal("expected two factor to be enabled")
	}

	if _, err := engine.GenerateTwoFactorKey(context.Background(), account.ID); !errors.Is(err, ErrTwoFactorEnabled) {
		t.Fatalf("expected ErrTwoFactorEnabled, got %v", err)
	}
}

func TestLoginRequiresSecondFactor(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeStore(), nil)
	account := createTestAccount(t, engine, "alice", "hunter2abc")
	secret, _ := enableTwoFactorForTest(t, engine, account.ID)

	// Missing second factor.
	_, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc",
	})
	if !errors.Is(err, ErrTwoFactorRequired) {
		t.Fatalf("expected ErrTwoFactorRequired, got %v", err)
	}

	// Wrong code.
	_, err = engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc", OTPToken: "000000",
	})
	if !errors.Is(err, ErrTwoFactorRequired) {
		t.Fatalf("expected ErrTwoFactorRequired for wrong code, got %v", err)
	}

	// Valid code.
	code, err := otpCode(secret, engine.now(), 0)
	if err != nil {
		t.Fatalf("otpCode failed: %v", err)
	}
	if _, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc", OTPToken: code,
	}); err != nil {
		t.Fatalf("login with valid code failed: %v", err)
	}
}

func TestModificationTokenSkipsSecondFactor(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeStore(), nil)
	account := createTestAccount(t, engine, "alice", "hunter2abc")
	enableTwoFactorForTest(t, engine, account.ID)

	if _, err := engine.ProvisionToken(ctx, "password", PurposeAccountModification, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc",
	}); err != nil {
		t.Fatalf("modification provision with 2FA enabled failed: %v", err)
	}
}

func TestBackupCodeFallback(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeStore(), nil)
	account := createTestAccount(t, engine, "alice", "hunter2abc")
	_, backupCodes := enableTwoFactorForTest(t, engine, account.ID)

	if _, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc", OTPToken: backupCodes[0],
	}); err != nil {
		t.Fatalf("backup code login failed: %v", err)
	}

	// A consumed code never validates again.
	_, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc", OTPToken: backupCodes[0],
	})
	if !errors.Is(err, ErrTwoFactorRequired) {
		t.Fatalf("expected reused backup code to fail with ErrTwoFactorRequired, got %v", err)
	}

	// Other codes from the batch still work.
	if _, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc", OTPToken: backupCodes[1],
	}); err != nil {
		t.Fatalf("second backup code login failed: %v", err)
	}
}

func TestBackupCodeConcurrentConsumeSingleWinner(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeStore(), nil)
	account := createTestAccount(t, engine, "alice", "hunter2abc")
	_, backupCodes := enableTwoFactorForTest(t, engine, account.ID)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
				Username: "alice", Password: "hunter2abc", OTPToken: backupCodes[0],
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrTwoFactorRequired):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d concurrent attempts consumed the same backup code, want exactly 1", succeeded)
	}
}

func TestRegenerateBackupCodesInvalidatesOldBatch(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeStore(), nil)
	account := createTestAccount(t, engine, "alice", "hunter2abc")
	_, oldCodes := enableTwoFactorForTest(t, engine, account.ID)

	newCodes, err := engine.RegenerateBackupCodes(ctx, account.ID)
	if err != nil {
		t.Fatalf("RegenerateBackupCodes failed: %v", err)
	}
	if len(newCodes) != backupCodeCount {
		t.Fatalf("got %d codes, want %d", len(newCodes), backupCodeCount)
	}

	if _, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc", OTPToken: oldCodes[0],
	}); !errors.Is(err, ErrTwoFactorRequired) {
		t.Fatalf("expected old batch to be invalid, got %v", err)
	}
	if _, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc", OTPToken: newCodes[0],
	}); err != nil {
		t.Fatalf("new batch login failed: %v", err)
	}
}

func TestDisableTwoFactor(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeStore(), nil)
	account := createTestAccount(t, engine, "alice", "hunter2abc")

	if err := engine.DisableTwoFactor(ctx, account.ID); !errors.Is(err, ErrTwoFactorDisabled) {
		t.Fatalf("expected ErrTwoFactorDisabled when never enabled, got %v", err)
	}

	enableTwoFactorForTest(t, engine, account.ID)
	if err := engine.DisableTwoFactor(ctx, account.ID); err != nil {
		t.Fatalf("DisableTwoFactor failed: %v", err)
	}

	// Logins no longer demand a code.
	if _, err := engine.ProvisionToken(ctx, "password", PurposeLogin, "desktop", ProvisionOptions{
		Username: "alice", Password: "hunter2abc",
	}); err != nil {
		t.Fatalf("login after disable failed: %v", err)
	}

	if _, err := engine.RegenerateBackupCodes(ctx, account.ID); !errors.Is(err, ErrTwoFactorDisabled) {
		t.Fatalf("expected ErrTwoFactorDisabled, got %v", err)
	}
}
