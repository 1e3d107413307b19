package formats

import (
	"context"
	"io"

	metaerrors "github.com/flaneur2020/filemeta/filemeta/errors"
)

// CommentWriter is implemented by extractors whose format carries an editable
// comment. WriteComment copies src to w with the comment replaced. An empty
// comment removes it where the format allows, and blanks it otherwise.
type CommentWriter interface {
	WriteComment(ctx context.Context, src Source, w io.Writer, comment string) error
}

// copyRange copies n bytes of src starting at off to w.
func copyRange(w io.Writer, src Source, off, n int64) error {
	if n <= 0 {
		return nil
	}
	written, err := io.Copy(w, io.NewSectionReader(src, off, n))
	if err != nil {
		return metaerrors.NewIOError(off+written, err)
	}
	if written < n {
		return metaerrors.NewTruncatedError(off, n, written)
	}
	return nil
}
