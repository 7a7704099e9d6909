package ports

import "context"

// BlobStore almacenamiento off-site de escritura única.
// Put nunca sobrescribe un objeto existente; Get devuelve los bytes tal cual se guardaron.
type BlobStore interface {
	Put(ctx context.Context, name string, blob []byte) (location string, err error)
	Get(ctx context.Context, location string) ([]byte, error)
}

// Cipher cifrado autenticado de artefactos de backup con clave derivada por usuario.
type Cipher interface {
	Seal(userID string, plaintext []byte) ([]byte, error)
	Open(userID string, ciphertext []byte) ([]byte, error)
}
