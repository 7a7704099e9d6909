package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/jhoicas/meu-agente-api/internal/domain"
	"github.com/jhoicas/meu-agente-api/internal/domain/entity"
)

const snapshotFormat = 1

// snapshot contenido en claro de un backup.
type snapshot struct {
	Format  int                       `json:"format"`
	UserID  string                    `json:"user_id"`
	Records []*entity.FinancialRecord `json:"records"`
}

// EncodeSnapshot serializa los registros del usuario en JSON canónico (RFC 8785):
// los mismos datos producen siempre los mismos bytes y por lo tanto el mismo checksum.
func EncodeSnapshot(userID string, records []*entity.FinancialRecord) ([]byte, error) {
	norm := make([]*entity.FinancialRecord, len(records))
	for i, r := range records {
		cp := *r
		cp.Date = cp.Date.UTC().Truncate(time.Microsecond)
		cp.CreatedAt = cp.CreatedAt.UTC().Truncate(time.Microsecond)
		norm[i] = &cp
	}
	sort.Slice(norm, func(i, j int) bool { return norm[i].ID < norm[j].ID })

	raw, err := json.Marshal(snapshot{Format: snapshotFormat, UserID: userID, Records: norm})
	if err != nil {
		return nil, fmt.Errorf("snapshot: serializar: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot: canonicalizar: %w", err)
	}
	return canonical, nil
}

// DecodeSnapshot valida formato y dueño del snapshot.
func DecodeSnapshot(userID string, content []byte) ([]*entity.FinancialRecord, error) {
	var s snapshot
	if err := json.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("%w: snapshot ilegible: %v", domain.ErrBackupIntegrity, err)
	}
	if s.Format != snapshotFormat {
		return nil, fmt.Errorf("%w: formato de snapshot %d no soportado", domain.ErrBackupIntegrity, s.Format)
	}
	if s.UserID != userID {
		return nil, fmt.Errorf("%w: el snapshot pertenece a otro usuario", domain.ErrBackupIntegrity)
	}
	return s.Records, nil
}

// Checksum "sha256:<hex>" de los bytes dados.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
