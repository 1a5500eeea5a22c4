package seal

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

// fakeKMS wraps data keys by XOR with a master key, which is enough to prove
// the wrapped key round-trips through Decrypt.
type fakeKMS struct {
	master      []byte
	generated   int
	decrypted   int
	failDecrypt bool
	lastKeyID   string
}

func (f *fakeKMS) GenerateDataKey(_ context.Context, in *kms.GenerateDataKeyInput, _ ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	f.generated++
	f.lastKeyID = aws.ToString(in.KeyId)
	plain := make([]byte, 32)
	if _, err := rand.Read(plain); err != nil {
		return nil, err
	}
	wrapped := make([]byte, 32)
	for i := range plain {
		wrapped[i] = plain[i] ^ f.master[i]
	}
	return &kms.GenerateDataKeyOutput{
		Plaintext:      append([]byte(nil), plain...),
		CiphertextBlob: wrapped,
		KeyId:          in.KeyId,
	}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.decrypted++
	if f.failDecrypt {
		return nil, errors.New("access denied")
	}
	plain := make([]byte, len(in.CiphertextBlob))
	for i := range plain {
		plain[i] = in.CiphertextBlob[i] ^ f.master[i]
	}
	return &kms.DecryptOutput{Plaintext: plain}, nil
}

func TestPlaintextRoundTrip(t *testing.T) {
	in := []byte("JBSWY3DPEHPK3PXP")
	sealed, err := Plaintext{}.Seal(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, sealed)

	sealed[0] = 'X'
	assert.Equal(t, byte('J'), in[0], "seal must copy its input")
}

func TestAESGCMRoundTripAndNonce(t *testing.T) {
	s, err := NewAESGCM(randomKey(t))
	require.NoError(t, err)

	a, err := s.Seal(context.Background(), []byte("secret"))
	require.NoError(t, err)
	b, err := s.Seal(context.Background(), []byte("secret"))
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, b), "each seal uses a fresh nonce")

	got, err := s.Open(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)
}

func TestAESGCMRejectsTamperingAndWrongKey(t *testing.T) {
	s, err := NewAESGCM(randomKey(t))
	require.NoError(t, err)
	sealed, err := s.Seal(context.Background(), []byte("secret"))
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = s.Open(context.Background(), tampered)
	assert.ErrorIs(t, err, ErrOpenFailed)

	other, err := NewAESGCM(randomKey(t))
	require.NoError(t, err)
	_, err = other.Open(context.Background(), sealed)
	assert.ErrorIs(t, err, ErrOpenFailed)

	_, err = s.Open(context.Background(), []byte("plain"))
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestNewAESGCMKeyLength(t *testing.T) {
	_, err := NewAESGCM([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKMSEnvelopeRoundTrip(t *testing.T) {
	client := &fakeKMS{master: randomKey(t)}
	s, err := NewKMSEnvelope(client, "alias/ledgerauth")
	require.NoError(t, err)

	sealed, err := s.Seal(context.Background(), []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, versionKMSEnvelope, sealed[0])
	assert.Equal(t, "alias/ledgerauth", client.lastKeyID)

	got, err := s.Open(context.Background(), sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)
	assert.Equal(t, 1, client.generated)
	assert.Equal(t, 1, client.decrypted)
}

func TestKMSEnvelopeErrors(t *testing.T) {
	client := &fakeKMS{master: randomKey(t)}
	s, err := NewKMSEnvelope(client, "alias/ledgerauth")
	require.NoError(t, err)

	sealed, err := s.Seal(context.Background(), []byte("secret"))
	require.NoError(t, err)

	client.failDecrypt = true
	_, err = s.Open(context.Background(), sealed)
	assert.ErrorIs(t, err, ErrOpenFailed)

	_, err = s.Open(context.Background(), []byte{versionKMSEnvelope, 0xFF, 0xFF, 0x01})
	assert.ErrorIs(t, err, ErrOpenFailed)

	_, err = NewKMSEnvelope(nil, "k")
	assert.Error(t, err)
	_, err = NewKMSEnvelope(client, "")
	assert.Error(t, err)
}
