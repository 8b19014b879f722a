package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/stage-exporter/constants"
	"github.com/joseph-ayodele/stage-exporter/internal/artifact"
	"github.com/joseph-ayodele/stage-exporter/internal/common"
	"github.com/joseph-ayodele/stage-exporter/internal/entity"
	"github.com/joseph-ayodele/stage-exporter/internal/repository"
	"github.com/joseph-ayodele/stage-exporter/internal/storage"
	"github.com/joseph-ayodele/stage-exporter/internal/transfer"
	"github.com/joseph-ayodele/stage-exporter/internal/warehouse"
)

// Processor runs one claimed work item end to end: options → warehouse query
// → local artifact → object storage → remote transfer → terminal status.
type Processor struct {
	logger      *slog.Logger
	runner      warehouse.QueryRunner
	store       storage.ObjectStore
	remote      transfer.Remote
	statusRepo  repository.StatusRepository
	artifactDir string
	keyPrefix   string
}

func NewProcessor(
	logger *slog.Logger,
	runner warehouse.QueryRunner,
	store storage.ObjectStore,
	remote transfer.Remote,
	statusRepo repository.StatusRepository,
	artifactDir string,
	keyPrefix string,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if artifactDir == "" {
		artifactDir = "./tmp"
	}
	if keyPrefix == "" {
		keyPrefix = "processed"
	}
	return &Processor{
		logger:      logger,
		runner:      runner,
		store:       store,
		remote:      remote,
		statusRepo:  statusRepo,
		artifactDir: artifactDir,
		keyPrefix:   keyPrefix,
	}
}

// ProcessItem exports one work item and records exactly one terminal status.
// Any failure along the pipeline becomes a FAILURE record with the error's
// message (truncated by the status repository); the error is returned so the
// dispatcher can count it, but it never fails the batch as a whole.
func (p *Processor) ProcessItem(ctx context.Context, item *entity.WorkItem) error {
	log := p.logger.With("item_id", item.ID, "file_name", item.FileName)
	if batchID := common.BatchIDFromContext(ctx); batchID != "" {
		log = log.With("batch_id", batchID)
	}

	if err := p.export(ctx, item, log); err != nil {
		log.Error("item export failed", "err", err)
		if rerr := p.recordStatus(ctx, item.ID, constants.StatusFailure, err.Error()); rerr != nil {
			return fmt.Errorf("record failure for %s: %w", item.ID, rerr)
		}
		return err
	}

	if err := p.recordStatus(ctx, item.ID, constants.StatusSuccess, ""); err != nil {
		return fmt.Errorf("record success for %s: %w", item.ID, err)
	}
	log.Info("item exported")
	return nil
}

// statusRecordTimeout bounds the terminal-status write once it is detached
// from the item deadline.
const statusRecordTimeout = 30 * time.Second

// recordStatus writes the terminal status on a context detached from the
// item's deadline. An item that timed out or was cancelled must still end up
// with exactly one SUCCESS or FAILURE record.
func (p *Processor) recordStatus(ctx context.Context, id uuid.UUID, status constants.ItemStatus, message string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusRecordTimeout)
	defer cancel()
	return p.statusRepo.Upsert(ctx, id, status, message)
}

func (p *Processor) export(ctx context.Context, item *entity.WorkItem, log *slog.Logger) error {
	opts, err := artifact.ParseOptions(item.Options)
	if err != nil {
		return err
	}

	rs, err := p.runner.Run(ctx, item.SourceQuery)
	if err != nil {
		return fmt.Errorf("run source query: %w", err)
	}
	log.Debug("source query complete", "rows", len(rs.Rows), "format", opts.Format)

	if err := os.MkdirAll(p.artifactDir, 0o755); err != nil {
		return fmt.Errorf("ensure artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(p.artifactDir, "export-*."+opts.Format.Ext())
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			log.Warn("artifact cleanup failed", "path", tmp.Name(), "err", err)
		}
	}()

	if err := artifact.Encode(tmp, rs, opts); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("flush artifact: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind artifact: %w", err)
	}

	key := path.Join(p.keyPrefix, item.FileName)
	if err := p.store.Put(ctx, key, tmp); err != nil {
		return fmt.Errorf("upload to object storage: %w", err)
	}

	if err := p.remote.Upload(ctx, tmp.Name(), item.FileName); err != nil {
		return fmt.Errorf("remote transfer: %w", err)
	}
	return nil
}
