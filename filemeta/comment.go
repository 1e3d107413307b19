package filemeta

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
	"github.com/flaneur2020/filemeta/filemeta/formats"
	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
	"github.com/flaneur2020/filemeta/filemeta/storage"
)

// SetComment replaces the comment stored in the file at path. The new content
// goes to a temporary file in the same directory, which must extract cleanly
// before it is renamed over the original. The original is left untouched on
// any failure.
func (e *Extractor) SetComment(ctx context.Context, path, comment string) error {
	local := storage.NewLocalStorage()
	blob, err := local.Open(ctx, path)
	if err != nil {
		return err
	}
	defer blob.Close()

	ex, err := e.pick(blob)
	if err != nil {
		return err
	}
	cw, ok := ex.(formats.CommentWriter)
	if !ok {
		return metaerrors.ErrUnsupported.
			WithMessage("format has no writable comment").
			WithDetail("format", ex.Name())
	}

	st, err := os.Stat(path)
	if err != nil {
		return metaerrors.NewIOError(0, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := cw.WriteComment(ctx, blob, w, comment); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, st.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set mode of %s: %w", tmpName, err)
	}

	if err := verifyRewrite(ctx, local, ex, tmpName); err != nil {
		return fmt.Errorf("rewritten %s does not extract: %w", path, err)
	}

	blob.Close()
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	committed = true
	logger.Info("updated %s comment of %s", ex.Name(), path)
	return nil
}

func verifyRewrite(ctx context.Context, st storage.Storage, ex formats.Extractor, name string) error {
	blob, err := st.Open(ctx, name)
	if err != nil {
		return err
	}
	defer blob.Close()
	return ex.Extract(ctx, blob, metainfo.New(ex.Name(), ex.MimeTypes()[0]))
}
