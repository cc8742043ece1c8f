// Package jobs provides background job definitions and handlers using Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
)

// Task types for scan jobs
const (
	TypeScanExecute = "scan:execute"
)

// Queue names
const (
	QueueScans = "scans"
)

// ScanExecutePayload contains data for executing a scan.
type ScanExecutePayload struct {
	ScanID  string `json:"scan_id"`
	OwnerID string `json:"owner_id"`
	Domain  string `json:"domain"`
}

// NewScanExecuteTask creates a scan execution task. The generous timeout
// covers the rate-limited provider calls of a full query catalog; a scan
// exceeding it is retried and its orchestrator skips terminal scans.
func NewScanExecuteTask(payload ScanExecutePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan payload: %w", err)
	}
	return asynq.NewTask(
		TypeScanExecute,
		data,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue(QueueScans),
	), nil
}

// ScanExecutor runs a scan to a terminal state.
type ScanExecutor interface {
	Execute(ctx context.Context, scanID shared.ID) error
}

// ScanTaskHandler handles scan execution tasks.
type ScanTaskHandler struct {
	executor ScanExecutor
	logger   *logger.Logger
}

// NewScanTaskHandler creates a scan task handler.
func NewScanTaskHandler(executor ScanExecutor, log *logger.Logger) *ScanTaskHandler {
	return &ScanTaskHandler{
		executor: executor,
		logger:   log.With("component", "scan_task_handler"),
	}
}

// HandleScanExecute processes a scan execution task.
func (h *ScanTaskHandler) HandleScanExecute(ctx context.Context, task *asynq.Task) error {
	var payload ScanExecutePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// A malformed payload never becomes valid; do not retry.
		return fmt.Errorf("unmarshal scan payload: %v: %w", err, asynq.SkipRetry)
	}

	scanID, err := shared.IDFromString(payload.ScanID)
	if err != nil {
		return fmt.Errorf("invalid scan id %q: %v: %w", payload.ScanID, err, asynq.SkipRetry)
	}

	h.logger.Info("executing scan", "scan_id", payload.ScanID, "domain", payload.Domain)

	if err := h.executor.Execute(ctx, scanID); err != nil {
		h.logger.Error("scan execution failed", "scan_id", payload.ScanID, "error", err)
		return err
	}
	return nil
}
