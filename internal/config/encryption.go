// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package config provides configuration management for the application.
// This file implements credential encryption so vehicle-cloud account
// secrets can be stored at rest (config files, env files) without being
// readable in plain text.
//
// Encryption Algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per encryption
//   - Key derived from GATEWAY_CREDENTIAL_KEY using HKDF-SHA256
//
// Encrypted values carry the "enc:" prefix followed by
// base64(nonce || ciphertext || tag). Values without the prefix pass
// through unchanged, so plain-text deployments keep working.
//
// Example Usage:
//
//	encryptor, err := NewCredentialEncryptor(os.Getenv(CredentialKeyEnvVar))
//	if err != nil {
//	    log.Fatal("Failed to create encryptor:", err)
//	}
//
//	stored, err := encryptor.Encrypt("account-password")  // "enc:..."
//	plain, err := encryptor.Decrypt(stored)
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// CredentialKeyEnvVar names the environment variable holding the master
// key material for credential encryption.
const CredentialKeyEnvVar = "GATEWAY_CREDENTIAL_KEY"

// EncryptedPrefix marks a configuration value as encrypted.
const EncryptedPrefix = "enc:"

const (
	// credentialEncryptionSalt is the salt used for HKDF key derivation.
	// This is a fixed, application-specific salt that ensures keys are
	// uniquely bound to this application's credential encryption use case.
	credentialEncryptionSalt = "bluelink-gateway-credentials"

	// credentialEncryptionInfo is the HKDF info parameter for key derivation.
	credentialEncryptionInfo = "credential-encryption-v1"

	// aesKeySize is the size of the AES key in bytes (256 bits).
	aesKeySize = 32

	// gcmNonceSize is the size of the GCM nonce in bytes.
	gcmNonceSize = 12
)

var (
	// ErrEmptyKey is returned when empty master key material is provided.
	ErrEmptyKey = errors.New("credential key cannot be empty")

	// ErrEmptyPlaintext is returned when attempting to encrypt empty data.
	ErrEmptyPlaintext = errors.New("plaintext cannot be empty")

	// ErrEmptyCiphertext is returned when attempting to decrypt empty data.
	ErrEmptyCiphertext = errors.New("ciphertext cannot be empty")

	// ErrDecryptionFailed is returned when decryption fails (invalid ciphertext or tampered data).
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")

	// ErrInvalidCiphertext is returned when the ciphertext format is invalid.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrCiphertextTooShort is returned when the ciphertext is shorter than the minimum length.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrKeyRequired is returned when an encrypted value is present but no
	// master key is configured.
	ErrKeyRequired = errors.New("encrypted credential found but " + CredentialKeyEnvVar + " is not set")
)

// CredentialEncryptor provides AES-256-GCM encryption for sensitive credentials.
// It derives the encryption key from the deployment's master key material
// using HKDF, binding encrypted credentials to this gateway instance.
type CredentialEncryptor struct {
	key    []byte
	cipher cipher.AEAD
}

// NewCredentialEncryptor creates a new credential encryptor using the provided master key.
// The key material is stretched to a 256-bit AES key using HKDF-SHA256.
func NewCredentialEncryptor(masterKey string) (*CredentialEncryptor, error) {
	if masterKey == "" {
		return nil, ErrEmptyKey
	}

	// Derive encryption key from master key material using HKDF
	key, err := deriveKey(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	// Create AES cipher
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	// Create GCM mode
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &CredentialEncryptor{
		key:    key,
		cipher: gcm,
	}, nil
}

// IsEncrypted reports whether a configuration value carries the enc: prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// Encrypt encrypts a plaintext string and returns an enc:-prefixed,
// base64-encoded ciphertext. The payload format is:
// enc:base64(nonce || ciphertext || tag)
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	// Generate random nonce
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Encrypt with GCM (includes authentication tag)
	ciphertext := e.cipher.Seal(nonce, nonce, []byte(plaintext), nil)

	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts an enc:-prefixed ciphertext and returns the plaintext.
// The prefix is optional so raw base64 payloads also decrypt.
func (e *CredentialEncryptor) Decrypt(ciphertext string) (string, error) {
	ciphertext = strings.TrimPrefix(ciphertext, EncryptedPrefix)
	if ciphertext == "" {
		return "", ErrEmptyCiphertext
	}

	// Decode base64
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed: %s", ErrInvalidCiphertext, err.Error())
	}

	// Minimum length: nonce (12) + at least 1 byte + tag (16) = 29 bytes
	minLength := gcmNonceSize + 1 + e.cipher.Overhead()
	if len(data) < minLength {
		return "", ErrCiphertextTooShort
	}

	// Extract nonce and ciphertext
	nonce := data[:gcmNonceSize]
	encryptedData := data[gcmNonceSize:]

	// Decrypt and verify
	plaintext, err := e.cipher.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// MaskCredential returns a masked version of a credential for display purposes.
// Shows only the last 4 characters preceded by asterisks.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}

	if len(credential) <= 4 {
		return "****"
	}

	// Show last 4 characters
	return "****..." + credential[len(credential)-4:]
}

// deriveKey derives a 256-bit AES key from the master key material using HKDF-SHA256.
func deriveKey(masterKey string) ([]byte, error) {
	// Create HKDF reader
	hkdfReader := hkdf.New(
		sha256.New,
		[]byte(masterKey),
		[]byte(credentialEncryptionSalt),
		[]byte(credentialEncryptionInfo),
	)

	// Read key bytes
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}

	return key, nil
}

// ValidateEncryptionSetup validates that encryption is properly configured.
// This performs a round-trip encrypt/decrypt test to ensure the encryptor is working.
func (e *CredentialEncryptor) ValidateEncryptionSetup() error {
	testData := "encryption-validation-test"

	encrypted, err := e.Encrypt(testData)
	if err != nil {
		return fmt.Errorf("encryption test failed: %w", err)
	}

	decrypted, err := e.Decrypt(encrypted)
	if err != nil {
		return fmt.Errorf("decryption test failed: %w", err)
	}

	if decrypted != testData {
		return errors.New("round-trip validation failed: data mismatch")
	}

	return nil
}

// decryptCredentials replaces enc:-prefixed account credentials with their
// decrypted values. It is a no-op when no credential is encrypted; it fails
// when an encrypted value is present but GATEWAY_CREDENTIAL_KEY is not set.
func decryptCredentials(cfg *Config) error {
	fields := []*string{
		&cfg.Upstream.Username,
		&cfg.Upstream.Password,
		&cfg.Upstream.PIN,
	}

	anyEncrypted := false
	for _, field := range fields {
		if IsEncrypted(*field) {
			anyEncrypted = true
			break
		}
	}
	if !anyEncrypted {
		return nil
	}

	masterKey := os.Getenv(CredentialKeyEnvVar)
	if masterKey == "" {
		return ErrKeyRequired
	}

	encryptor, err := NewCredentialEncryptor(masterKey)
	if err != nil {
		return err
	}

	for _, field := range fields {
		if !IsEncrypted(*field) {
			continue
		}
		plain, err := encryptor.Decrypt(*field)
		if err != nil {
			return err
		}
		*field = plain
	}

	return nil
}
