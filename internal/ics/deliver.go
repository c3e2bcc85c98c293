package ics

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	appLog "actcal/internal/log"
)

// FileDeliverer writes calendar documents to disk.
type FileDeliverer struct {
	// Path is the target file. If empty, Payload.Filename is used in the
	// current directory.
	Path string
}

// Deliver writes p.Body atomically: a temp file in the target directory is
// synced, chmod'ed to 0644 and renamed over the target.
func (f FileDeliverer) Deliver(ctx context.Context, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := f.Path
	if path == "" {
		path = p.Filename
	}
	if path == "" {
		return errors.New("deliver: no output path")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".actcal-*.ics.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(p.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	appLog.Info("calendar written", "path", path, "bytes", len(p.Body))
	return nil
}
