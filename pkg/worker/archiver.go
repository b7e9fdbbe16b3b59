package worker

import (
	"context"

	"github.com/Abraxas-365/workq/pkg/queue"
)

// Archiver receives every finalized job document.
type Archiver interface {
	Archive(ctx context.Context, job *queue.Job, state queue.State) error
}
