package blob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archive writes raw notifications under date-partitioned, tenant-scoped keys.
// A nil *Archive or one without a store accepts writes and does nothing.
type Archive struct {
	store Store
	newID func() uuid.UUID
}

func NewArchive(store Store) *Archive {
	return &Archive{store: store, newID: uuid.New}
}

func (a *Archive) Enabled() bool {
	return a != nil && a.store != nil
}

// Save stores body and returns its key. ext selects the suffix ("json" for
// webhook payloads, "eml" for SMTP messages).
func (a *Archive) Save(ctx context.Context, tenantID string, at time.Time, ext, contentType string, body []byte) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	key := ArchiveKey(tenantID, at, a.newID(), ext)
	if err := a.store.Put(ctx, key, contentType, body); err != nil {
		return "", fmt.Errorf("archive notification: %w", err)
	}
	return key, nil
}

// ArchiveKey returns notifications/<tenant>/<yyyy>/<mm>/<dd>/<id>.<ext>.
func ArchiveKey(tenantID string, at time.Time, id uuid.UUID, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("notifications/%s/%s/%s.%s", sanitizeSegment(tenantID), at.UTC().Format("2006/01/02"), id, ext)
}

// sanitizeSegment keeps a tenant id from escaping its key prefix.
func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
