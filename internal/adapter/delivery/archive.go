package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidpress/internal/port"
)

// Archive delivers completed artifacts into a per-owner directory and hands
// back a durable id. It stands in for the channel-upload collaborator; the
// caption is written next to the artifact so downstream consumers keep the
// metadata.
type Archive struct {
	baseDir string
	log     zerolog.Logger
}

func NewArchive(baseDir string, log zerolog.Logger) *Archive {
	return &Archive{baseDir: baseDir, log: log}
}

func (a *Archive) Deliver(ctx context.Context, ownerID int64, artifactPath, caption string) (*port.DeliveryHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ownerDir := filepath.Join(a.baseDir, fmt.Sprintf("%d", ownerID))
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return nil, fmt.Errorf("create delivery directory: %w", err)
	}

	id := uuid.NewString()
	destPath := filepath.Join(ownerDir, id+filepath.Ext(artifactPath))

	if err := copyFile(artifactPath, destPath); err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}

	if caption != "" {
		if err := os.WriteFile(destPath+".caption", []byte(caption), 0o644); err != nil {
			a.log.Warn().Err(err).Str("handle", id).Msg("write caption failed")
		}
	}

	a.log.Info().Int64("owner", ownerID).Str("handle", id).Msg("artifact delivered")
	return &port.DeliveryHandle{ID: id, Location: destPath}, nil
}

// copyFile copies rather than renames: the artifact lives in scratch, which
// may sit on a different filesystem and is removed after delivery.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

var _ port.Deliverer = (*Archive)(nil)
