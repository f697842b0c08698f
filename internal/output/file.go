// Package output writes the serialized phonebook to its destination.
package output

import (
	"context"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/cardbook/internal/core"
	"github.com/JonMunkholm/cardbook/internal/logging"
)

// DefaultFileMode is the permission of a newly created phonebook.
const DefaultFileMode os.FileMode = 0o644

// FileWriter replaces the destination file atomically: the payload goes to a
// temporary file in the same directory, is synced, then renamed over the
// destination. Readers see the old or the new phonebook, never a mix.
type FileWriter struct {
	Mode os.FileMode
}

// NewFileWriter returns a FileWriter with the default file mode.
func NewFileWriter() *FileWriter {
	return &FileWriter{Mode: DefaultFileMode}
}

// Write stores payload at path, replacing any existing content.
// The parent directory must exist. Failures are returned as *core.WriteError.
func (w *FileWriter) Write(ctx context.Context, path, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := w.writeAtomic(path, payload); err != nil {
		return &core.WriteError{Path: path, Err: err}
	}

	logging.FromContext(ctx).Debug("phonebook written", "path", path, "bytes", len(payload))
	return nil
}

func (w *FileWriter) writeAtomic(dest, payload string) error {
	mode := w.Mode
	if mode == 0 {
		mode = DefaultFileMode
	}

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".cardbook-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := tmp.Chmod(mode); err != nil {
		return fail(err)
	}
	if _, err := tmp.WriteString(payload); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// ReadFile returns the phonebook currently stored at path.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
