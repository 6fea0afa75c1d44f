// Package memstore is an in-memory CredentialStore. It is the reference
// implementation for the store contract and the backend the test suites run
// against; nothing here survives a process restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goAccounts"
)

type verificationCode struct {
	code   string
	expiry time.Time
}

// Store keeps every record in maps behind a single RWMutex, with a second
// layer of per-account mutexes backing WithAccountLock so composed flows for
// the same account never interleave.
type Store struct {
	mu sync.RWMutex

	nextAccountID uint64
	nextKeyID     uint64

	accounts  map[uint64]goAccounts.Account
	usernames map[string]uint64
	tokens    map[string]goAccounts.Token
	resets    map[uint64]goAccounts.PasswordResetRequest
	otp       map[uint64]goAccounts.OtpSecret
	backups   map[uint64][]goAccounts.BackupCode
	keys      map[uint64][]goAccounts.SecurityKeyCredential
	verify    map[uint64][]verificationCode

	lockMu       sync.Mutex
	accountLocks map[uint64]*sync.Mutex
}

var _ goAccounts.CredentialStore = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:     make(map[uint64]goAccounts.Account),
		usernames:    make(map[string]uint64),
		tokens:       make(map[string]goAccounts.Token),
		resets:       make(map[uint64]goAccounts.PasswordResetRequest),
		otp:          make(map[uint64]goAccounts.OtpSecret),
		backups:      make(map[uint64][]goAccounts.BackupCode),
		keys:         make(map[uint64][]goAccounts.SecurityKeyCredential),
		verify:       make(map[uint64][]verificationCode),
		accountLocks: make(map[uint64]*sync.Mutex),
	}
}

func (s *Store) InsertAccount(_ context.Context, username, passwordHash, email string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[username]; taken {
		return 0, goAccounts.ErrAccountExists
	}

	s.nextAccountID++
	id := s.nextAccountID
	s.accounts[id] = goAccounts.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	s.usernames[username] = id
	return id, nil
}

func (s *Store) FindAccountByUsername(_ context.Context, username string) (*goAccounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, goAccounts.ErrNotFound
	}
	account := s.accounts[id]
	return &account, nil
}

func (s *Store) FindAccountByID(_ context.Context, id uint64) (*goAccounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, goAccounts.ErrNotFound
	}
	return &account, nil
}

func (s *Store) UpdateUsername(_ context.Context, id uint64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return goAccounts.ErrNotFound
	}
	if other, taken := s.usernames[username]; taken && other != id {
		return goAccounts.ErrAccountExists
	}

	delete(s.usernames, account.Username)
	account.Username = username
	s.accounts[id] = account
	s.usernames[username] = id
	return nil
}

func (s *Store) UpdateEmail(_ context.Context, id uint64, email string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return goAccounts.ErrNotFound
	}
	account.Email = email
	account.Verified = verified
	s.accounts[id] = account
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return goAccounts.ErrNotFound
	}
	account.PasswordHash = passwordHash
	s.accounts[id] = account
	return nil
}

func (s *Store) SetVerified(_ context.Context, id uint64, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return goAccounts.ErrNotFound
	}
	account.Verified = verified
	s.accounts[id] = account
	return nil
}

func (s *Store) InsertToken(_ context.Context, token *goAccounts.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Value] = *token
	return nil
}

func (s *Store) FindToken(_ context.Context, value string) (*goAccounts.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[value]
	if !ok {
		return nil, goAccounts.ErrNotFound
	}
	return &token, nil
}

func (s *Store) DeleteToken(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, value)
	return nil
}

func (s *Store) DeleteAccountTokens(_ context.Context, accountID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for value, token := range s.tokens {
		if token.AccountID == accountID {
			delete(s.tokens, value)
		}
	}
	return nil
}

func (s *Store) InsertResetRequest(_ context.Context, request *goAccounts.PasswordResetRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// One pending reset per account: a new request overwrites the old.
	s.resets[request.AccountID] = *request
	return nil
}

func (s *Store) FindResetRequest(_ context.Context, accountID uint64) (*goAccounts.PasswordResetRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.resets[accountID]
	if !ok {
		return nil, goAccounts.ErrNotFound
	}
	return &request, nil
}

func (s *Store) DeleteResetRequest(_ context.Context, accountID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resets, accountID)
	return nil
}

func (s *Store) GetOtpSecret(_ context.Context, accountID uint64) (*goAccounts.OtpSecret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.otp[accountID]
	if !ok {
		return nil, goAccounts.ErrNotFound
	}
	return &secret, nil
}

func (s *Store) SetOtpSecret(_ context.Context, accountID uint64, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otp[accountID] = goAccounts.OtpSecret{AccountID: accountID, Secret: secret}
	return nil
}

func (s *Store) SetOtpEnabled(_ context.Context, accountID uint64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok := s.otp[accountID]
	if !ok {
		return goAccounts.ErrNotFound
	}
	secret.Enabled = enabled
	s.otp[accountID] = secret
	return nil
}

func (s *Store) ReplaceBackupCodes(_ context.Context, accountID uint64, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]goAccounts.BackupCode, 0, len(codes))
	for _, code := range codes {
		batch = append(batch, goAccounts.BackupCode{AccountID: accountID, Code: code})
	}
	s.backups[accountID] = batch
	return nil
}

func (s *Store) ListBackupCodes(_ context.Context, accountID uint64) ([]goAccounts.BackupCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]goAccounts.BackupCode, len(s.backups[accountID]))
	copy(codes, s.backups[accountID])
	return codes, nil
}

func (s *Store) MarkBackupCodeUsed(_ context.Context, accountID uint64, code string) (bool, error) {
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

func (s *Store) FindSecurityKeyCredentials(_ context.Context, accountID uint64, application string) ([]goAccounts.SecurityKeyCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []goAccounts.SecurityKeyCredential
	for _, credential := range s.keys[accountID] {
		if credential.Application == application {
			matches = append(matches, credential)
		}
	}
	return matches, nil
}

func (s *Store) ListSecurityKeys(_ context.Context, accountID uint64) ([]goAccounts.SecurityKeyCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]goAccounts.SecurityKeyCredential, len(s.keys[accountID]))
	copy(keys, s.keys[accountID])
	return keys, nil
}

func (s *Store) InsertSecurityKeyCredential(_ context.Context, credential *goAccounts.SecurityKeyCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextKeyID++
	stored := *credential
	stored.ID = s.nextKeyID
	s.keys[stored.AccountID] = append(s.keys[stored.AccountID], stored)
	credential.ID = stored.ID
	return nil
}

func (s *Store) ReplaceSecurityKeyCredential(_ context.Context, accountID uint64, oldData, newData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.keys[accountID]
	for i := range batch {
		if string(batch[i].Data) == string(oldData) {
			batch[i].Data = append([]byte(nil), newData...)
			return nil
		}
	}
	return goAccounts.ErrNotFound
}

func (s *Store) DeleteSecurityKeyCredential(_ context.Context, accountID, keyID uint64) (*goAccounts.SecurityKeyCredential, error) {
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
	return nil, goAccounts.ErrNotFound
}

func (s *Store) InsertVerificationCode(_ context.Context, accountID uint64, code string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verify[accountID] = append(s.verify[accountID], verificationCode{code: code, expiry: expiry})
	return nil
}

func (s *Store) ConsumeVerificationCode(_ context.Context, accountID uint64, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.verify[accountID]
	for i := range batch {
		if batch[i].code == code && batch[i].expiry.After(now) {
			s.verify[accountID] = append(batch[:i], batch[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) WithAccountLock(ctx context.Context, accountID uint64, fn func(ctx context.Context) error) error {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

func (s *Store) accountLock(accountID uint64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	lock, ok := s.accountLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.accountLocks[accountID] = lock
	}
	return lock
}
