package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/stage-exporter/internal/common"
	"github.com/joseph-ayodele/stage-exporter/internal/entity"
	"github.com/joseph-ayodele/stage-exporter/internal/repository"
)

// ItemProcessor runs one claimed work item to a terminal status.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item *entity.WorkItem) error
}

// Dispatcher drives one batch cycle: reclaim expired leases, claim a batch,
// fan out one worker per claimed item, wait for all of them, report a summary.
type Dispatcher struct {
	logger      *slog.Logger
	items       repository.WorkItemRepository
	proc        ItemProcessor
	batchSize   int
	itemTimeout time.Duration
	leaseTTL    time.Duration
}

// Summary reports the outcome of one batch cycle.
type Summary struct {
	BatchID   string
	Reclaimed int
	Claimed   int
	Succeeded int
	Failed    int
}

func NewDispatcher(
	logger *slog.Logger,
	items repository.WorkItemRepository,
	proc ItemProcessor,
	batchSize int,
	itemTimeout time.Duration,
	leaseTTL time.Duration,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Dispatcher{
		logger:      logger,
		items:       items,
		proc:        proc,
		batchSize:   batchSize,
		itemTimeout: itemTimeout,
		leaseTTL:    leaseTTL,
	}
}

// RunCycle executes a single batch cycle. A claim-phase error aborts the
// cycle; per-item failures only show up in the summary counts.
func (d *Dispatcher) RunCycle(ctx context.Context) (Summary, error) {
	batchID := uuid.NewString()
	ctx = common.WithBatchID(ctx, batchID)
	log := d.logger.With("batch_id", batchID)
	summary := Summary{BatchID: batchID}

	reclaimed, err := d.items.ReclaimExpired(ctx, d.leaseTTL)
	if err != nil {
		return summary, fmt.Errorf("reclaim expired leases: %w", err)
	}
	summary.Reclaimed = reclaimed

	items, err := d.items.Claim(ctx, d.batchSize)
	if err != nil {
		return summary, fmt.Errorf("claim batch: %w", err)
	}
	summary.Claimed = len(items)
	if len(items) == 0 {
		log.Info("no pending work items")
		return summary, nil
	}
	log.Info("starting batch cycle", "claimed", len(items), "batch_size", d.batchSize)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)
	for _, item := range items {
		wg.Add(1)
		go func(item *entity.WorkItem) {
			defer wg.Done()

			itemCtx := common.WithItemID(ctx, item.ID.String())
			if d.itemTimeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(itemCtx, d.itemTimeout)
				defer cancel()
			}

			err := d.proc.ProcessItem(itemCtx, item)
			mu.Lock()
			if err != nil {
				failed++
			} else {
				succeeded++
			}
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	summary.Succeeded = succeeded
	summary.Failed = failed
	log.Info("batch cycle complete",
		"claimed", summary.Claimed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"reclaimed", summary.Reclaimed,
	)
	return summary, nil
}
