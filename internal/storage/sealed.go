package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/and161185/gastroguide/internal/crypto/clientcrypto"
	"github.com/and161185/gastroguide/internal/errs"
)

// Sealed encrypts every value before handing it to the inner storage.
// The storage key is bound as AAD, so a value copied under another key fails to open.
type Sealed struct {
	inner  Storage
	master []byte
}

// NewSealed derives the master key from passphrase. The salt is created on first use and
// kept in plaintext under KeySealSalt of the inner storage.
func NewSealed(ctx context.Context, inner Storage, passphrase string) (*Sealed, error) {
	salt, err := loadSalt(ctx, inner)
	if err != nil {
		return nil, err
	}
	return &Sealed{inner: inner, master: clientcrypto.DeriveMaster([]byte(passphrase), salt)}, nil
}

func loadSalt(ctx context.Context, inner Storage) ([]byte, error) {
	v, err := inner.Get(ctx, KeySealSalt)
	if err == nil {
		salt, derr := base64.RawStdEncoding.DecodeString(v)
		if derr == nil && len(salt) == clientcrypto.SaltLen {
			return salt, nil
		}
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("seal salt: %w", err)
	}
	salt, err := clientcrypto.Rand(clientcrypto.SaltLen)
	if err != nil {
		return nil, err
	}
	if err := inner.Set(ctx, KeySealSalt, base64.RawStdEncoding.EncodeToString(salt)); err != nil {
		return nil, fmt.Errorf("seal salt: %w", err)
	}
	return salt, nil
}

// Get opens the value under key.
func (s *Sealed) Get(ctx context.Context, key string) (string, error) {
	v, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	blob, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return "", fmt.Errorf("sealed %s: %w", key, err)
	}
	sub, err := clientcrypto.DeriveKeyFor(s.master, key)
	if err != nil {
		return "", err
	}
	pt, err := clientcrypto.Open(sub, []byte(key), blob)
	if err != nil {
		return "", fmt.Errorf("sealed %s: %w", key, err)
	}
	return string(pt), nil
}

// Set seals value and stores it under key.
func (s *Sealed) Set(ctx context.Context, key, value string) error {
	sub, err := clientcrypto.DeriveKeyFor(s.master, key)
	if err != nil {
		return err
	}
	blob, err := clientcrypto.Seal(sub, []byte(key), []byte(value))
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, base64.RawStdEncoding.EncodeToString(blob))
}

// Remove deletes key from the inner storage.
func (s *Sealed) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}
