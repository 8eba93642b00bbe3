package sealer

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealRoundTrip(t *testing.T) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key := newKey(t)

	sealed, err := Seal(SealRequest{Key: key, RecipientPublicKey: pub[:]})
	require.NoError(t, err)
	assert.Len(t, sealed, KeySize+box.AnonymousOverhead)

	opened, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	require.True(t, ok)
	assert.True(t, bytes.Equal(key, opened))
}

func TestSealRejectsBadLengths(t *testing.T) {
	pub, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = Seal(SealRequest{Key: []byte("short"), RecipientPublicKey: pub[:]})
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = Seal(SealRequest{Key: newKey(t), RecipientPublicKey: []byte{1, 2, 3}})
	require.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestServiceSealsForEveryRecipient(t *testing.T) {
	svc := NewService(2, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})

	type keypair struct{ pub, priv *[32]byte }
	pairs := make(map[int64]keypair)
	var recipients []Recipient
	for id := int64(1); id <= 6; id++ {
		pub, priv, err := box.GenerateKey(rand.Reader)
		require.NoError(t, err)
		pairs[id] = keypair{pub, priv}
		recipients = append(recipients, Recipient{UserID: id, PublicKey: pub[:]})
	}

	key := newKey(t)
	sealed, err := svc.SealForRecipients(context.Background(), key, recipients)
	require.NoError(t, err)
	require.Len(t, sealed, len(recipients))

	for i, s := range sealed {
		assert.Equal(t, recipients[i].UserID, s.UserID)
		kp := pairs[s.UserID]
		opened, ok := box.OpenAnonymous(nil, s.SealedKey, kp.pub, kp.priv)
		require.True(t, ok)
		assert.Equal(t, key, opened)
	}
	assert.LessOrEqual(t, svc.Stats().Spawned, 2)
}

func TestServiceReportsFailingRecipient(t *testing.T) {
	svc := NewService(2, nil)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	pub, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = svc.SealForRecipients(context.Background(), newKey(t), []Recipient{
		{UserID: 1, PublicKey: pub[:]},
		{UserID: 2, PublicKey: []byte("bad")},
	})
	require.ErrorIs(t, err, ErrInvalidPublicKey)
	assert.Contains(t, err.Error(), "user 2")
	assert.Equal(t, 0, svc.Stats().Faults)
}
