package filemeta

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/flaneur2020/filemeta/filemeta/logger"
	"github.com/flaneur2020/filemeta/filemeta/metainfo"
	"github.com/flaneur2020/filemeta/filemeta/storage"
)

// ProgressCallback is called after each file of a batch
// done: files finished so far, successful or not
// total: files in the batch
type ProgressCallback func(done, total int)

// Result is the outcome for one file of a batch.
type Result struct {
	Name string
	Info *metainfo.Info
	Err  error
}

// ExtractAll extracts every named file of st with up to workers files in flight.
// With no names it extracts everything st lists. Results keep the input order.
// A failing file does not stop the batch; the failures are returned together.
func (e *Extractor) ExtractAll(ctx context.Context, st storage.Storage, names []string, workers int, progress ProgressCallback) ([]Result, error) {
	if len(names) == 0 {
		descs, err := st.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
		for _, d := range descs {
			names = append(names, d.Name)
		}
	}
	if workers <= 0 {
		workers = 1
	}

	results := make([]Result, len(names))
	var (
		mu   sync.Mutex
		done int
	)
	if progress != nil {
		progress(0, len(names))
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := e.extractNamed(ctx, st, name)
			results[i] = Result{Name: name, Info: info, Err: err}
			if err != nil {
				logger.Warn("%s: %v", name, err)
			}

			mu.Lock()
			done++
			if progress != nil {
				progress(done, len(names))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var merr *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return results, merr.ErrorOrNil()
}

func (e *Extractor) extractNamed(ctx context.Context, st storage.Storage, name string) (*metainfo.Info, error) {
	blob, err := st.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()
	return e.Extract(ctx, blob)
}
