package goAccounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	mu sync.Mutex

	nextAccountID uint64
	nextKeyID     uint64

	accounts  map[uint64]Account
	usernames map[string]uint64
	tokens    map[string]Token
	resets    map[uint64]PasswordResetRequest
	otp       map[uint64]OtpSecret
	backups   map[uint64][]BackupCode
	keys      map[uint64][]SecurityKeyCredential
	verify    map[uint64]map[string]time.Time

	insertTokenErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  map[uint64]Account{},
		usernames: map[string]uint64{},
		tokens:    map[string]Token{},
		resets:    map[uint64]PasswordResetRequest{},
		otp:       map[uint64]OtpSecret{},
		backups:   map[uint64][]BackupCode{},
		keys:      map[uint64][]SecurityKeyCredential{},
		verify:    map[uint64]map[string]time.Time{},
	}
}

func (s *fakeStore) InsertAccount(_ context.Context, username, passwordHash, email string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usernames[username]; taken {
		return 0, ErrAccountExists
	}
	s.nextAccountID++
	id := s.nextAccountID
	s.accounts[id] = Account{ID: id, Username: username, Email: email, PasswordHash: passwordHash}
	s.usernames[username] = id
	return id, nil
}

func (s *fakeStore) FindAccountByUsername(_ context.Context, username string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usernames[username]
	if !ok {
		return nil, ErrNotFound
	}
	account := s.accounts[id]
	return &account, nil
}

func (s *fakeStore) FindAccountByID(_ context.Context, id uint64) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (s *fakeStore) UpdateUsername(_ context.Context, id uint64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if other, taken := s.usernames[username]; taken && other != id {
		return ErrAccountExists
	}
	delete(s.usernames, account.Username)
	account.Username = username
	s.accounts[id] = account
	s.usernames[username] = id
	return nil
}

func (s *fakeStore) UpdateEmail(_ context.Context, id uint64, email string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Email = email
	account.Verified = verified
	s.accounts[id] = account
	return nil
}

func (s *fakeStore) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.PasswordHash = passwordHash
	s.accounts[id] = account
	return nil
}

func (s *fakeStore) SetVerified(_ context.Context, id uint64, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.Verified = verified
	s.accounts[id] = account
	return nil
}

func (s *fakeStore) InsertToken(_ context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertTokenErr != nil {
		return s.insertTokenErr
	}
	s.tokens[token.Value] = *token
	return nil
}

func (s *fakeStore) FindToken(_ context.Context, value string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[value]
	if !ok {
		return nil, ErrNotFound
	}
	return &token, nil
}

func (s *fakeStore) DeleteToken(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, value)
	return nil
}

func (s *fakeStore) DeleteAccountTokens(_ context.Context, accountID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for value, token := range s.tokens {
		if token.AccountID == accountID {
			delete(s.tokens, value)
		}
	}
	return nil
}

func (s *fakeStore) InsertResetRequest(_ context.Context, request *PasswordResetRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[request.AccountID] = *request
	return nil
}

func (s *fakeStore) FindResetRequest(_ context.Context, accountID uint64) (*PasswordResetRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.resets[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &request, nil
}

func (s *fakeStore) DeleteResetRequest(_ context.Context, accountID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resets, accountID)
	return nil
}

func (s *fakeStore) GetOtpSecret(_ context.Context, accountID uint64) (*OtpSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.otp[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &secret, nil
}

func (s *fakeStore) SetOtpSecret(_ context.Context, accountID uint64, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otp[accountID] = OtpSecret{AccountID: accountID, Secret: secret}
	return nil
}

func (s *fakeStore) SetOtpEnabled(_ context.Context, accountID uint64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.otp[accountID]
	if !ok {
		return ErrNotFound
	}
	secret.Enabled = enabled
	s.otp[accountID] = secret
	return nil
}

func (s *fakeStore) ReplaceBackupCodes(_ context.Context, accountID uint64, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]BackupCode, 0, len(codes))
	for _, code := range codes {
		batch = append(batch, BackupCode{AccountID: accountID, Code: code})
	}
	s.backups[accountID] = batch
	return nil
}

func (s *fakeStore) ListBackupCodes(_ context.Context, accountID uint64) ([]BackupCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]BackupCode, len(s.backups[accountID]))
	copy(codes, s.backups[accountID])
	return codes, nil
}

func (s *fakeStore) MarkBackupCodeUsed(_ context.Context, accountID uint64, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.backups[accountID]
	for i := range batch {
		if !batch[i].Used && batch[i].Code == code {
			batch[i].Used = true
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) FindSecurityKeyCredentials(_ context.Context, accountID uint64, application string) ([]SecurityKeyCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []SecurityKeyCredential
	for _, credential := range s.keys[accountID] {
		if credential.Application == application {
			matches = append(matches, credential)
		}
	}
	return matches, nil
}

func (s *fakeStore) ListSecurityKeys(_ context.Context, accountID uint64) ([]SecurityKeyCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]SecurityKeyCredential, len(s.keys[accountID]))
	copy(keys, s.keys[accountID])
	return keys, nil
}

func (s *fakeStore) InsertSecurityKeyCredential(_ context.Context, credential *SecurityKeyCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextKeyID++
	stored := *credential
	stored.ID = s.nextKeyID
	s.keys[stored.AccountID] = append(s.keys[stored.AccountID], stored)
	credential.ID = stored.ID
	return nil
}

func (s *fakeStore) ReplaceSecurityKeyCredential(_ context.Context, accountID uint64, oldData, newData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.keys[accountID]
	for i := range batch {
		if string(batch[i].Data) == string(oldData) {
			batch[i].Data = append([]byte(nil), newData...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) DeleteSecurityKeyCredential(_ context.Context, accountID, keyID uint64) (*SecurityKeyCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.keys[accountID]
	for i := range batch {
		if batch[i].ID == keyID {
			removed := batch[i]
			s.keys[accountID] = append(batch[:i], batch[i+1:]...)
			return &removed, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) InsertVerificationCode(_ context.Context, accountID uint64, code string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verify[accountID] == nil {
		s.verify[accountID] = map[string]time.Time{}
	}
	s.verify[accountID][code] = expiry
	return nil
}

func (s *fakeStore) ConsumeVerificationCode(_ context.Context, accountID uint64, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.verify[accountID][code]
	if !ok || !expiry.After(now) {
		return false, nil
	}
	delete(s.verify[accountID], code)
	return true, nil
}

func (s *fakeStore) WithAccountLock(ctx context.Context, _ uint64, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeStore) passwordHash(accountID uint64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].PasswordHash
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// testConfig keeps the digest cost low so the suite stays fast.
func testConfig() Config {
	cfg := defaultConfig()
	cfg.Password.Iterations = 64
	return cfg
}

func newTestEngine(t *testing.T, store CredentialStore, sink NotificationSink) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(testConfig()).
		WithStore(store).
		WithNotificationSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func createTestAccount(t *testing.T, engine *Engine, username, plainPassword string) *Account {
	t.Helper()

	account, err := engine.CreateAccount(context.Background(), username, plainPassword, username+"@example.com")
	if err != nil {
		t.Fatalf("CreateAccount(%q) failed: %v", username, err)
	}
	return account
}

// waitNotification receives one event from a channel sink or fails the test.
func waitNotification(t *testing.T, sink *ChannelSink, kind NotificationKind) Notification {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.Kind == kind {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s notification", kind)
		}
	}
}
