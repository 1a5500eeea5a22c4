package seal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// KMSAPI is the part of *kms.Client the envelope sealer calls.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSEnvelope seals each value under its own data key. Output is
// version || uint16 len(wrappedKey) || wrappedKey || nonce || ciphertext.
type KMSEnvelope struct {
	client KMSAPI
	keyID  string
}

func NewKMSEnvelope(client KMSAPI, keyID string) (*KMSEnvelope, error) {
	if client == nil {
		return nil, errors.New("kms client is required")
	}
	if keyID == "" {
		return nil, errors.New("kms key id is required")
	}
	return &KMSEnvelope{client: client, keyID: keyID}, nil
}

func (s *KMSEnvelope) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	out, err := s.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(s.keyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate data key: %v", ErrSealFailed, err)
	}
	defer clear(out.Plaintext)

	if len(out.CiphertextBlob) == 0 || len(out.CiphertextBlob) > 0xFFFF {
		return nil, fmt.Errorf("%w: unexpected wrapped key size", ErrSealFailed)
	}

	aead, err := newGCM(out.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	prefix := make([]byte, 3, 3+len(out.CiphertextBlob))
	prefix[0] = versionKMSEnvelope
	binary.BigEndian.PutUint16(prefix[1:], uint16(len(out.CiphertextBlob)))
	prefix = append(prefix, out.CiphertextBlob...)

	sealed, err := sealWith(aead, prefix, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	return sealed, nil
}

func (s *KMSEnvelope) Open(ctx context.Context, sealed []byte) ([]byte, error) {
	if len(sealed) < 3 || sealed[0] != versionKMSEnvelope {
		return nil, fmt.Errorf("%w: unexpected format", ErrOpenFailed)
	}
	n := int(binary.BigEndian.Uint16(sealed[1:3]))
	if len(sealed) < 3+n {
		return nil, fmt.Errorf("%w: truncated wrapped key", ErrOpenFailed)
	}
	wrapped := sealed[3 : 3+n]

	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: wrapped,
		KeyId:          aws.String(s.keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt data key: %v", ErrOpenFailed, err)
	}
	defer clear(out.Plaintext)

	aead, err := newGCM(out.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return openWith(aead, sealed[3+n:])
}
