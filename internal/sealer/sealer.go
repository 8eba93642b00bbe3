// Package sealer wraps per-recipient copies of a symmetric call key in NaCl
// anonymous sealed boxes, running the work on a bounded worker pool.
package sealer

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/box"

	"github.com/nortonjulian/chatforia-signal/internal/pool"
)

const (
	// KeySize is the length of the symmetric key being sealed.
	KeySize = 32
	// PublicKeySize is the length of an X25519 recipient public key.
	PublicKeySize = 32
)

var (
	// ErrInvalidKey is returned when the symmetric key has the wrong length.
	ErrInvalidKey = errors.New("sealer: key must be 32 bytes")
	// ErrInvalidPublicKey is returned when a recipient key has the wrong length.
	ErrInvalidPublicKey = errors.New("sealer: recipient public key must be 32 bytes")
)

// SealRequest is one sealing task.
type SealRequest struct {
	Key                []byte
	RecipientPublicKey []byte
}

// SealedKey is the key sealed for one recipient.
type SealedKey []byte

// Seal encrypts req.Key to req.RecipientPublicKey.
func Seal(req SealRequest) (SealedKey, error) {
	if len(req.Key) != KeySize {
		return nil, ErrInvalidKey
	}
	if len(req.RecipientPublicKey) != PublicKeySize {
		return nil, ErrInvalidPublicKey
	}

	var pub [PublicKeySize]byte
	copy(pub[:], req.RecipientPublicKey)

	out, err := box.SealAnonymous(nil, req.Key, &pub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("seal key: %w", err)
	}
	return out, nil
}

// Recipient identifies who a key is sealed for.
type Recipient struct {
	UserID    int64
	PublicKey []byte
}

// Sealed is the outcome for one recipient.
type Sealed struct {
	UserID    int64
	SealedKey SealedKey
}

// Service seals keys on a worker pool.
type Service struct {
	pool *pool.Pool[SealRequest, SealedKey]
	log  *zerolog.Logger
}

// NewService starts a sealing pool with size workers (0 picks the default).
func NewService(size int, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	p := pool.New[SealRequest, SealedKey](Seal, pool.WithSize(size), pool.WithName("sealer"), pool.WithLogger(logger))
	return &Service{pool: p, log: logger}
}

// SealForRecipients seals key once per recipient, in parallel up to the pool
// size. The first failure is returned with the offending user id. Cancelling
// ctx stops waiting; submitted tasks still run.
func (s *Service) SealForRecipients(ctx context.Context, key []byte, recipients []Recipient) ([]Sealed, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	pending := make([]<-chan pool.Result[SealedKey], len(recipients))
	for i, r := range recipients {
		pending[i] = s.pool.Submit(SealRequest{Key: key, RecipientPublicKey: r.PublicKey})
	}

	out := make([]Sealed, len(recipients))
	for i, ch := range pending {
		select {
		case res := <-ch:
			if res.Err != nil {
				return nil, fmt.Errorf("seal for user %d: %w", recipients[i].UserID, res.Err)
			}
			out[i] = Sealed{UserID: recipients[i].UserID, SealedKey: res.Value}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.log.Debug().Int("recipients", len(recipients)).Msg("sealed call key")
	return out, nil
}

// Stats exposes the underlying pool snapshot.
func (s *Service) Stats() pool.Stats {
	return s.pool.Stats()
}

// Close drains the pool.
func (s *Service) Close(ctx context.Context) error {
	return s.pool.Close(ctx)
}
