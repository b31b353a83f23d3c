// Package cleanup prunes finished jobs and audio files no upload row refers to.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/mabel-stories/mabel/internal/storage"
	"github.com/mabel-stories/mabel/internal/store"
)

// orphanGrace keeps very recent files, which may belong to an upload whose
// row is still being written.
const orphanGrace = time.Hour

// PruneJobs removes COMPLETED and FAILED jobs that finished more than
// maxAgeDays ago. If dryRun is true, nothing is deleted; the function only
// returns the IDs that would be removed.
func PruneJobs(ctx context.Context, st *store.Store, maxAgeDays int, dryRun bool) ([]string, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	jobs, err := st.FinishedJobsBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	if dryRun || len(ids) == 0 {
		return ids, nil
	}
	if _, err := st.DeleteJobs(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// PruneOrphanUploads removes stored objects that no audio upload row refers
// to. If dryRun is true, nothing is deleted. Returns the pruned keys.
func PruneOrphanUploads(ctx context.Context, st *store.Store, fs *storage.FS, dryRun bool) ([]string, error) {
	known, err := st.AudioUploadKeys(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := fs.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-orphanGrace)
	var pruned []string
	for _, obj := range objects {
		if known[obj.Key] || obj.ModTime.After(cutoff) {
			continue
		}
		if !dryRun {
			if err := fs.Delete(ctx, obj.Key); err != nil {
				return pruned, fmt.Errorf("removing %s: %w", obj.Key, err)
			}
		}
		pruned = append(pruned, obj.Key)
	}
	return pruned, nil
}
