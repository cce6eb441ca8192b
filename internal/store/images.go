package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/imaging"
)

// ImageRefPrefix marks photo references that point into the local image table.
const ImageRefPrefix = "img:"

// Image is a stored evidence photo.
type Image struct {
	Ref       string
	Data      []byte
	MIME      string
	CreatedAt time.Time
}

// IsLocalImageRef reports whether ref names an image kept in the local store.
func IsLocalImageRef(ref string) bool {
	return strings.HasPrefix(ref, ImageRefPrefix)
}

// PutImage normalizes a photo and stores it, returning a new reference
// usable as borrow or return evidence.
func (s *Store) PutImage(ctx context.Context, r io.Reader, now time.Time) (string, error) {
	photo, err := imaging.Normalize(r)
	if err != nil {
		return "", err
	}
	ref := ImageRefPrefix + uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO images (ref, data, mime, created_at) VALUES (?, ?, ?, ?)`,
		ref, photo.Data, photo.MIME, millis(now),
	)
	if err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	return ref, nil
}

// GetImage returns an image by reference, or nil if it is not stored.
func (s *Store) GetImage(ctx context.Context, ref string) (*Image, error) {
	img := &Image{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT ref, data, mime, created_at FROM images WHERE ref = ?`, ref,
	).Scan(&img.Ref, &img.Data, &img.MIME, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting image: %w", err)
	}
	img.CreatedAt = fromMillis(createdAt)
	return img, nil
}
