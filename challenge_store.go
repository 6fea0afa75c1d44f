package goAccounts

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeKeyPrefix      = "skc"
	challengeRecordVersion1 = 1

	challengeKindLogin    = 1
	challengeKindRegister = 2
)

var (
	errChallengeNotFound = errors.New("security key challenge not found")
	errChallengeBackend  = errors.New("security key challenge backend unavailable")
)

// securityKeyChallenge is the transient state between the prepare and
// complete halves of a ceremony. It lives in redis under a per-session uuid
// with a short TTL: an abandoned ceremony simply expires and can never
// authenticate later.
type securityKeyChallenge struct {
	Kind        uint8
	AccountID   uint64
	ExpiresAt   int64
	Application string
	Blob        []byte // prepared options from the ceremony service
}

type securityKeyChallengeStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func newSecurityKeyChallengeStore(redisClient *redis.Client, ttl time.Duration) *securityKeyChallengeStore {
	return &securityKeyChallengeStore{redis: redisClient, ttl: ttl}
}

func (s *securityKeyChallengeStore) key(challengeID string) string {
	return challengeKeyPrefix + ":" + challengeID
}

func (s *securityKeyChallengeStore) Save(ctx context.Context, challengeID string, record *securityKeyChallenge) error {
	record.ExpiresAt = time.Now().Add(s.ttl).Unix()
	encoded, err := encodeSecurityKeyChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return nil
}

// Take fetches and deletes a challenge in one step: a challenge verifies at
// most once, even under concurrent completion attempts.
func (s *securityKeyChallengeStore) Take(ctx context.Context, challengeID string) (*securityKeyChallenge, error) {
	data, err := s.redis.GetDel(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}

	record, err := decodeSecurityKeyChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, errChallengeNotFound
	}
	return record, nil
}

func encodeSecurityKeyChallenge(record *securityKeyChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(record.Kind)

	if err := binary.Write(&buf, binary.BigEndian, record.AccountID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Application) > 65535 {
		return nil, errors.New("challenge application length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Application))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Application)

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(record.Blob))); err != nil {
		return nil, err
	}
	buf.Write(record.Blob)

	return buf.Bytes(), nil
}

func decodeSecurityKeyChallenge(data []byte) (*securityKeyChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &securityKeyChallenge{}
	if record.Kind, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.AccountID); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var appLen uint16
	if err := binary.Read(reader, binary.BigEndian, &appLen); err != nil {
		return nil, err
	}
	app := make([]byte, appLen)
	if _, err := io.ReadFull(reader, app); err != nil {
		return nil, err
	}
	record.Application = string(app)

	var blobLen uint32
	if err := binary.Read(reader, binary.BigEndian, &blobLen); err != nil {
		return nil, err
	}
	record.Blob = make([]byte, blobLen)
	if _, err := io.ReadFull(reader, record.Blob); err != nil {
		return nil, err
	}

	return record, nil
}
