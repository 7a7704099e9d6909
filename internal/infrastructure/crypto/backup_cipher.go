package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
)

var _ ports.Cipher = (*BackupCipher)(nil)

// magic + versión del formato del artefacto: "MAB" 0x01 | nonce(24) | ciphertext.
var header = []byte{'M', 'A', 'B', 0x01}

// ErrCiphertext artefacto truncado, de otro formato o alterado.
var ErrCiphertext = errors.New("crypto: artefacto inválido o alterado")

// BackupCipher XChaCha20-Poly1305 con una clave por usuario derivada por HKDF
// de la clave maestra. El userID va como datos asociados: un artefacto de un
// usuario no abre con la clave de otro.
type BackupCipher struct {
	master []byte
}

// NewBackupCipher recibe la clave maestra de 32 bytes.
func NewBackupCipher(master []byte) (*BackupCipher, error) {
	if len(master) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("crypto: la clave maestra debe tener %d bytes", chacha20poly1305.KeySize)
	}
	return &BackupCipher{master: append([]byte(nil), master...)}, nil
}

// NewBackupCipherFromBase64 igual que NewBackupCipher desde config (BACKUP_ENCRYPTION_KEY).
func NewBackupCipherFromBase64(s string) (*BackupCipher, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: BACKUP_ENCRYPTION_KEY no es base64: %w", err)
	}
	return NewBackupCipher(key)
}

func (c *BackupCipher) userKey(userID string) ([]byte, error) {
	r := hkdf.New(sha256.New, c.master, []byte("meu-agente/backup"), []byte("user:"+userID))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("crypto: derivar clave: %w", err)
	}
	return key, nil
}

// Seal cifra el snapshot del usuario.
func (c *BackupCipher) Seal(userID string, plaintext []byte) ([]byte, error) {
	key, err := c.userKey(userID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(header)+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out = append(out, header...)
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte(userID)), nil
}

// Open descifra y autentica un artefacto.
func (c *BackupCipher) Open(userID string, blob []byte) ([]byte, error) {
	if len(blob) < len(header)+chacha20poly1305.NonceSizeX || !bytes.Equal(blob[:len(header)], header) {
		return nil, ErrCiphertext
	}
	key, err := c.userKey(userID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	body := blob[len(header):]
	nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(userID))
	if err != nil {
		return nil, ErrCiphertext
	}
	return plaintext, nil
}
