package goAccounts

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccounts/jwt"
)

// Engine is the account management core: registration, credential
// verification, second factors, and token provisioning. Engines are built
// through [Builder.Build] and safe for concurrent use afterwards.
type Engine struct {
	config     Config
	store      CredentialStore
	cache      *accountCache
	jwtManager *jwt.Manager
	notify     *notifyDispatcher
	methods    []provisioningMethod
	challenges *securityKeyChallengeStore
	ceremony   CeremonyService

	// now is the engine clock; tests override it.
	now func() time.Time
}

// Close stops the notification dispatcher, draining queued events first.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.notify.Close()
}

// NotificationsDropped reports how many notifications were discarded because
// the dispatch buffer was full.
func (e *Engine) NotificationsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.notify.Dropped()
}

// CacheStats exposes account cache counters for diagnostics.
func (e *Engine) CacheStats() CacheStats {
	if e == nil || e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// accountByID reads through the snapshot cache.
func (e *Engine) accountByID(ctx context.Context, id uint64) (*Account, error) {
	if cached, ok := e.cache.Get(id); ok {
		return &cached, nil
	}

	account, err := e.store.FindAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoAccount
		}
		return nil, err
	}

	e.cache.Put(*account)
	return account, nil
}

// accountByUsername resolves by username and warms the id-keyed cache.
func (e *Engine) accountByUsername(ctx context.Context, username string) (*Account, error) {
	account, err := e.store.FindAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoAccount
		}
		return nil, err
	}

	e.cache.Put(*account)
	return account, nil
}

// invalidate drops the cached snapshot after a successful mutation. Callers
// invoke it before returning, so readers never observe a stale view past the
// mutating call.
func (e *Engine) invalidate(id uint64) {
	e.cache.Invalidate(id)
}

func (e *Engine) emit(kind NotificationKind, account *Account, details map[string]string) {
	event := Notification{Kind: kind, Details: details}
	if account != nil {
		event.AccountID = account.ID
		event.Username = account.Username
		event.Email = account.Email
	}
	e.notify.Emit(event)
}
