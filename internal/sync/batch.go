package sync

import (
	"context"

	"github.com/google/uuid"

	appLog "github.com/megane2501h/Aikatsu-academy-Schedule/internal/log"
)

// maxBatchSize is the remote API's hard per-batch cap. Configured chunk
// sizes are clamped to it.
const maxBatchSize = 50

// newRequestID tags one create operation for result disambiguation within a
// run. IDs are never stable across runs.
func newRequestID() string {
	return uuid.NewString()
}

// chunkSize clamps a configured size to [1, maxBatchSize].
func chunkSize(configured int) int {
	if configured <= 0 {
		return maxBatchSize
	}
	if configured > maxBatchSize {
		return maxBatchSize
	}
	return configured
}

// deleteChunked partitions ids into delete-sized chunks and issues one
// logical batch request per chunk, awaiting each before the next. A chunk
// whose call itself fails is unrecoverable; per-item failures are counted
// and logged only.
func (e *Engine) deleteChunked(ctx context.Context, ids []string) (succeeded, failed int, err error) {
	size := chunkSize(e.cfg.DeleteChunkSize)
	for offset := 0; offset < len(ids); offset += size {
		chunk := ids[offset:min(offset+size, len(ids))]

		results, callErr := e.store.BatchDelete(ctx, chunk)
		if callErr != nil {
			return succeeded, failed, callErr
		}
		for _, res := range results {
			if res.Err != nil {
				failed++
				appLog.Warn("entry delete failed", "id", res.ID, "err", res.Err)
				continue
			}
			succeeded++
		}
	}
	if len(ids) > 0 {
		appLog.Info("deletes executed", "succeeded", succeeded, "failed", failed, "chunk_size", size)
	}
	return succeeded, failed, nil
}

// createChunked is the create-side counterpart of deleteChunked. Creates
// tolerate slightly larger chunks than deletes.
func (e *Engine) createChunked(ctx context.Context, inputs []CreateInput) (succeeded, failed int, err error) {
	size := chunkSize(e.cfg.CreateChunkSize)
	for offset := 0; offset < len(inputs); offset += size {
		chunk := inputs[offset:min(offset+size, len(inputs))]

		results, callErr := e.store.BatchCreate(ctx, chunk)
		if callErr != nil {
			return succeeded, failed, callErr
		}
		for _, res := range results {
			if res.Err != nil {
				failed++
				appLog.Warn("entry create failed", "request_id", res.ID, "err", res.Err)
				continue
			}
			succeeded++
		}
	}
	if len(inputs) > 0 {
		appLog.Info("creates executed", "succeeded", succeeded, "failed", failed, "chunk_size", size)
	}
	return succeeded, failed, nil
}
