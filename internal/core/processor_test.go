package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/stage-exporter/constants"
	"github.com/joseph-ayodele/stage-exporter/internal/entity"
	"github.com/joseph-ayodele/stage-exporter/internal/repository"
	"github.com/joseph-ayodele/stage-exporter/internal/warehouse"
)

// -------------------- fakes --------------------

type fakeRunner struct {
	rs  *warehouse.ResultSet
	err error
}

func (f *fakeRunner) Run(_ context.Context, _ string) (*warehouse.ResultSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rs, nil
}

type fakeStore struct {
	err  error
	keys []string
	data map[string][]byte
}

func (f *fakeStore) Put(_ context.Context, key string, body io.Reader) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.keys = append(f.keys, key)
	f.data[key] = b
	return nil
}

// stalledRunner blocks until the context expires, like a warehouse query
// that outlives the item timeout.
type stalledRunner struct{}

func (stalledRunner) Run(ctx context.Context, _ string) (*warehouse.ResultSet, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeRemote struct {
	err   error
	names []string
}

func (f *fakeRemote) Upload(_ context.Context, _ string, remoteName string) error {
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, remoteName)
	return nil
}

type statusCall struct {
	id      uuid.UUID
	status  constants.ItemStatus
	message string
}

type fakeStatusRepo struct {
	calls []statusCall
	err   error

	// failWhenDone rejects writes on an expired context, like a real
	// database driver would.
	failWhenDone bool
}

func (f *fakeStatusRepo) Upsert(ctx context.Context, id uuid.UUID, status constants.ItemStatus, message string) error {
	if f.failWhenDone && ctx.Err() != nil {
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, statusCall{id: id, status: status, message: message})
	return nil
}

func (f *fakeStatusRepo) Get(_ context.Context, _ uuid.UUID) (*entity.StatusRecord, error) {
	return nil, errors.New("not implemented")
}

// -------------------- helpers --------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleItem() *entity.WorkItem {
	return &entity.WorkItem{
		ID:          uuid.New(),
		FileName:    "report.csv",
		SourceQuery: "SELECT 1",
	}
}

func sampleResultSet() *warehouse.ResultSet {
	return &warehouse.ResultSet{
		Columns: []string{"id", "name"},
		Rows:    [][]string{{"1", "alpha"}},
	}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read artifact dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected artifact dir empty, found %d entries", len(entries))
	}
}

// -------------------- tests --------------------

func TestProcessItemSuccess(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{}
	remote := &fakeRemote{}
	statuses := &fakeStatusRepo{}
	proc := NewProcessor(discardLogger(), &fakeRunner{rs: sampleResultSet()}, store, remote, statuses, dir, "processed")

	item := sampleItem()
	if err := proc.ProcessItem(context.Background(), item); err != nil {
		t.Fatalf("ProcessItem returned error: %v", err)
	}

	if len(store.keys) != 1 || store.keys[0] != "processed/report.csv" {
		t.Fatalf("unexpected store keys: %v", store.keys)
	}
	if got := string(store.data["processed/report.csv"]); got != "id,name\n1,alpha\n" {
		t.Fatalf("unexpected uploaded artifact: %q", got)
	}
	if len(remote.names) != 1 || remote.names[0] != "report.csv" {
		t.Fatalf("unexpected remote uploads: %v", remote.names)
	}
	if len(statuses.calls) != 1 {
		t.Fatalf("expected exactly one status call, got %d", len(statuses.calls))
	}
	if call := statuses.calls[0]; call.id != item.ID || call.status != constants.StatusSuccess {
		t.Fatalf("unexpected status call: %+v", call)
	}
	assertDirEmpty(t, dir)
}

func TestProcessItemRemoteFailure(t *testing.T) {
	dir := t.TempDir()
	cause := errors.New("connection reset by peer")
	statuses := &fakeStatusRepo{}
	proc := NewProcessor(discardLogger(), &fakeRunner{rs: sampleResultSet()}, &fakeStore{}, &fakeRemote{err: cause}, statuses, dir, "processed")

	item := sampleItem()
	if err := proc.ProcessItem(context.Background(), item); err == nil {
		t.Fatal("expected error from failed remote transfer")
	}

	if len(statuses.calls) != 1 {
		t.Fatalf("expected exactly one status call, got %d", len(statuses.calls))
	}
	call := statuses.calls[0]
	if call.status != constants.StatusFailure {
		t.Fatalf("expected FAILURE, got %s", call.status)
	}
	if !strings.Contains(call.message, "connection reset by peer") {
		t.Fatalf("expected cause in failure message, got %q", call.message)
	}
	for _, c := range statuses.calls {
		if c.status == constants.StatusSuccess {
			t.Fatal("SUCCESS must never be recorded for a failed item")
		}
	}
	assertDirEmpty(t, dir)
}

func TestProcessItemQueryFailureSkipsUploads(t *testing.T) {
	store := &fakeStore{}
	remote := &fakeRemote{}
	statuses := &fakeStatusRepo{}
	proc := NewProcessor(discardLogger(), &fakeRunner{err: errors.New("syntax error")}, store, remote, statuses, t.TempDir(), "processed")

	if err := proc.ProcessItem(context.Background(), sampleItem()); err == nil {
		t.Fatal("expected error from failed query")
	}
	if len(store.keys) != 0 || len(remote.names) != 0 {
		t.Fatal("no uploads should happen when the query fails")
	}
	if len(statuses.calls) != 1 || statuses.calls[0].status != constants.StatusFailure {
		t.Fatalf("expected single FAILURE record, got %+v", statuses.calls)
	}
}

func TestProcessItemInvalidOptions(t *testing.T) {
	statuses := &fakeStatusRepo{}
	proc := NewProcessor(discardLogger(), &fakeRunner{rs: sampleResultSet()}, &fakeStore{}, &fakeRemote{}, statuses, t.TempDir(), "processed")

	item := sampleItem()
	item.Options = []byte(`{"format":"PARQUET"}`)
	if err := proc.ProcessItem(context.Background(), item); err == nil {
		t.Fatal("expected error for invalid options")
	}
	if len(statuses.calls) != 1 || statuses.calls[0].status != constants.StatusFailure {
		t.Fatalf("expected single FAILURE record, got %+v", statuses.calls)
	}
}

func TestProcessItemTimeoutStillRecordsFailure(t *testing.T) {
	statuses := &fakeStatusRepo{failWhenDone: true}
	proc := NewProcessor(discardLogger(), stalledRunner{}, &fakeStore{}, &fakeRemote{}, statuses, t.TempDir(), "processed")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	item := sampleItem()
	if err := proc.ProcessItem(ctx, item); err == nil {
		t.Fatal("expected error from timed out item")
	}
	if len(statuses.calls) != 1 {
		t.Fatalf("expected one status call, got %d", len(statuses.calls))
	}
	call := statuses.calls[0]
	if call.status != constants.StatusFailure {
		t.Fatalf("expected FAILURE, got %s", call.status)
	}
	if !strings.Contains(call.message, context.DeadlineExceeded.Error()) {
		t.Fatalf("expected deadline error in message, got %q", call.message)
	}
}

// Failure messages go through the real status repository so the stored
// message honors the truncation limit.
func TestProcessItemFailureMessageTruncated(t *testing.T) {
	logger := discardLogger()
	db, err := repository.OpenSQLite(context.Background(), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })
	statuses := repository.NewStatusRepository(db, logger)

	cause := errors.New(strings.Repeat("z", constants.MaxMessageLength*2))
	proc := NewProcessor(logger, &fakeRunner{rs: sampleResultSet()}, &fakeStore{}, &fakeRemote{err: cause}, statuses, t.TempDir(), "processed")

	item := sampleItem()
	if err := proc.ProcessItem(context.Background(), item); err == nil {
		t.Fatal("expected error from failed remote transfer")
	}

	rec, err := statuses.Get(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if rec.Status != string(constants.StatusFailure) {
		t.Fatalf("expected FAILURE, got %s", rec.Status)
	}
	if len(rec.Message) != constants.MaxMessageLength {
		t.Fatalf("expected message truncated to %d bytes, got %d", constants.MaxMessageLength, len(rec.Message))
	}
}
