package goAccounts

import (
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goAccounts/jwt"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Construction is allocation-only; no I/O
// happens until the first Engine method call.
type Builder struct {
	config   Config
	store    CredentialStore
	redis    *redis.Client
	ceremony CeremonyService
	sink     NotificationSink

	built bool
}

func New() *Builder {
	return &Builder{config: defaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the credential store, the system of record. Required.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithRedis sets the redis client backing the transient security key
// challenge store. Required for the security key provisioning method.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCeremonyService sets the external security key ceremony collaborator.
// Required for the security key provisioning method.
func (b *Builder) WithCeremonyService(service CeremonyService) *Builder {
	b.ceremony = service
	return b
}

// WithNotificationSink sets the sink account event notifications are
// dispatched to. Optional; events are dropped without one.
func (b *Builder) WithNotificationSink(sink NotificationSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration, generates the process-lifetime signing
// secret, and returns a ready Engine. A Builder builds once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	b.config.applyDefaults()
	if err := b.config.validate(); err != nil {
		return nil, err
	}
	if (b.ceremony == nil) != (b.redis == nil) {
		return nil, errors.New("security keys need both a ceremony service and redis")
	}

	// The signing secret lives for this process only. Losing it on restart
	// is intentional: it bounds the exposure of outstanding modification
	// tokens.
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret: secret,
		TTL:    b.config.Token.ModificationTTL,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:     b.config,
		store:      b.store,
		cache:      newAccountCache(b.config.Cache),
		jwtManager: jwtManager,
		notify:     newNotifyDispatcher(b.sink, b.config.Notifications.BufferSize),
		now:        time.Now,
	}

	// Registration order is the order availableMethods reports.
	e.methods = []provisioningMethod{&passwordProvisioningMethod{engine: e}}
	if b.ceremony != nil {
		e.ceremony = b.ceremony
		e.challenges = newSecurityKeyChallengeStore(b.redis, b.config.Challenge.TTL)
		e.methods = append(e.methods, &securityKeyProvisioningMethod{engine: e})
	}

	b.built = true
	return e, nil
}
