package jobs

import (
	"context"

	"github.com/leekyio/api/internal/app"
)

// ScanQueueAdapter adapts the asynq client to app.ScanQueue.
type ScanQueueAdapter struct {
	client *Client
}

// NewScanQueueAdapter creates the adapter.
func NewScanQueueAdapter(client *Client) *ScanQueueAdapter {
	return &ScanQueueAdapter{client: client}
}

var _ app.ScanQueue = (*ScanQueueAdapter)(nil)

// Enqueue queues a scan execution job.
func (a *ScanQueueAdapter) Enqueue(ctx context.Context, job app.ScanJob) error {
	return a.client.EnqueueScanExecute(ctx, ScanExecutePayload{
		ScanID:  job.ScanID,
		OwnerID: job.OwnerID,
		Domain:  job.Domain,
	})
}
