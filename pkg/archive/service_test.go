package archive

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeArchiveStore struct {
	batches map[string]*models.ArchivedBatch
}

func newFakeArchiveStore() *fakeArchiveStore {
	return &fakeArchiveStore{batches: make(map[string]*models.ArchivedBatch)}
}

func (f *fakeArchiveStore) Create(_ context.Context, batch *models.ArchivedBatch) (*models.ArchivedBatch, error) {
	if batch.ArchivedAt.IsZero() {
		batch.ArchivedAt = time.Now().UTC()
	}
	f.batches[batch.BatchID] = batch
	return batch, nil
}

func (f *fakeArchiveStore) Get(_ context.Context, batchID string) (*models.ArchivedBatch, error) {
	batch, ok := f.batches[batchID]
	if !ok {
		return nil, nil
	}
	cp := *batch
	return &cp, nil
}

func (f *fakeArchiveStore) ListReplayable(_ context.Context, limit int) ([]models.ArchivedBatch, error) {
	var out []models.ArchivedBatch
	for _, b := range f.batches {
		if b.CanReplay {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArchivedAt.After(out[j].ArchivedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeArchiveStore) IncrementReplay(_ context.Context, batchID string) error {
	b := f.batches[batchID]
	b.ReplayCount++
	now := time.Now().UTC()
	b.LastReplayedAt = &now
	return nil
}

func (f *fakeArchiveStore) SetNonReplayable(_ context.Context, batchID, reason string) error {
	b := f.batches[batchID]
	b.CanReplay = false
	b.DisabledReason = &reason
	return nil
}

type fakeIngestStore struct {
	rows  []*models.RawRow
	metas []*models.BatchMeta
}

func (f *fakeIngestStore) InsertRows(_ context.Context, rows []*models.RawRow) error {
	now := time.Now().UTC()
	for _, row := range rows {
		row.ID = uuid.New().String()
		row.Status = models.RawRowStatusPending
		row.CreatedAt = now
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeIngestStore) CreateBatchMeta(_ context.Context, meta *models.BatchMeta) (*models.BatchMeta, error) {
	meta.CreatedAt = time.Now().UTC()
	if meta.Status == "" {
		meta.Status = models.BatchStatusPending
	}
	f.metas = append(f.metas, meta)
	return meta, nil
}

type fakeLocker struct {
	keys []string
}

func (f *fakeLocker) WithLock(_ context.Context, key string, _, _ time.Duration, fn func() error) error {
	f.keys = append(f.keys, key)
	return fn()
}

func testRows(n int) []json.RawMessage {
	rows := make([]json.RawMessage, n)
	for i := range rows {
		rows[i] = json.RawMessage(`{"player":"Player ` + string(rune('A'+i)) + `","points":12.5}`)
	}
	return rows
}

func newTestService(store ArchiveStore, ingest IngestStore, locker Locker) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(store, ingest, locker, nil, logger, 50)
}

func TestArchive(t *testing.T) {
	store := newFakeArchiveStore()
	svc := newTestService(store, &fakeIngestStore{}, nil)

	rows := testRows(3)
	batch, err := svc.Archive(context.Background(), "batch-1", "sleeper", "weekly_projections", rows)
	require.NoError(t, err)

	assert.Equal(t, "batch-1", batch.BatchID)
	assert.Equal(t, 3, batch.RowCount)
	assert.True(t, batch.CanReplay)
	assert.Zero(t, batch.ReplayCount)
	assert.NotEmpty(t, batch.Checksum)
	assert.Positive(t, batch.OriginalSize)
	assert.Positive(t, batch.CompressedSize)

	// compressed payload must decompress back to the checksummed form
	payload, err := decompress(batch.CompressedPayload)
	require.NoError(t, err)
	assert.Equal(t, batch.Checksum, payloadChecksum(payload))
	assert.Equal(t, batch.OriginalSize, len(payload))
}

func TestArchiveGeneratesBatchID(t *testing.T) {
	svc := newTestService(newFakeArchiveStore(), &fakeIngestStore{}, nil)

	batch, err := svc.Archive(context.Background(), "", "sleeper", "weekly_projections", testRows(1))
	require.NoError(t, err)
	assert.NotEmpty(t, batch.BatchID)
}

func TestReplayRoundTrip(t *testing.T) {
	store := newFakeArchiveStore()
	ingest := &fakeIngestStore{}
	svc := newTestService(store, ingest, nil)

	rows := testRows(4)
	_, err := svc.Archive(context.Background(), "batch-1", "sleeper", "weekly_projections", rows)
	require.NoError(t, err)

	result, err := svc.Replay(context.Background(), "batch-1")
	require.NoError(t, err)

	assert.Equal(t, "batch-1", result.OriginalBatchID)
	assert.NotEqual(t, "batch-1", result.NewBatchID)
	assert.Equal(t, 4, result.RowCount)

	// every row re-staged pending with a fresh id under the new batch
	require.Len(t, ingest.rows, 4)
	for i, row := range ingest.rows {
		assert.Equal(t, result.NewBatchID, row.BatchID)
		assert.Equal(t, models.RawRowStatusPending, row.Status)
		assert.NotEmpty(t, row.ID)
		assert.JSONEq(t, string(rows[i]), string(row.Payload))
	}

	// provenance recorded, original counters bumped
	require.Len(t, ingest.metas, 1)
	require.NotNil(t, ingest.metas[0].ReplayOf)
	assert.Equal(t, "batch-1", *ingest.metas[0].ReplayOf)

	original, _ := store.Get(context.Background(), "batch-1")
	assert.Equal(t, 1, original.ReplayCount)
	assert.NotNil(t, original.LastReplayedAt)
	assert.True(t, original.CanReplay, "replay must not disable the original")
}

func TestReplayTwiceProducesDistinctBatches(t *testing.T) {
	store := newFakeArchiveStore()
	ingest := &fakeIngestStore{}
	svc := newTestService(store, ingest, nil)

	_, err := svc.Archive(context.Background(), "batch-1", "sleeper", "weekly_projections", testRows(2))
	require.NoError(t, err)

	first, err := svc.Replay(context.Background(), "batch-1")
	require.NoError(t, err)
	second, err := svc.Replay(context.Background(), "batch-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.NewBatchID, second.NewBatchID)
	assert.Len(t, ingest.rows, 4)

	original, _ := store.Get(context.Background(), "batch-1")
	assert.Equal(t, 2, original.ReplayCount)
}

func TestReplayMissingBatch(t *testing.T) {
	svc := newTestService(newFakeArchiveStore(), &fakeIngestStore{}, nil)

	_, err := svc.Replay(context.Background(), "no-such-batch")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestReplayDisabledBatch(t *testing.T) {
	store := newFakeArchiveStore()
	ingest := &fakeIngestStore{}
	svc := newTestService(store, ingest, nil)

	_, err := svc.Archive(context.Background(), "batch-1", "sleeper", "weekly_projections", testRows(2))
	require.NoError(t, err)

	require.NoError(t, svc.MarkNonReplayable(context.Background(), "batch-1", "schema drift in source feed"))

	_, err = svc.Replay(context.Background(), "batch-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReplayable)
	assert.Empty(t, ingest.rows, "disabled batch must stage nothing")

	batch, _ := store.Get(context.Background(), "batch-1")
	require.NotNil(t, batch.DisabledReason)
	assert.Equal(t, "schema drift in source feed", *batch.DisabledReason)
}

func TestMarkNonReplayableMissingBatch(t *testing.T) {
	svc := newTestService(newFakeArchiveStore(), &fakeIngestStore{}, nil)

	err := svc.MarkNonReplayable(context.Background(), "no-such-batch", "because")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestReplayCorruptPayloadRefused(t *testing.T) {
	store := newFakeArchiveStore()
	ingest := &fakeIngestStore{}
	svc := newTestService(store, ingest, nil)

	_, err := svc.Archive(context.Background(), "batch-1", "sleeper", "weekly_projections", testRows(2))
	require.NoError(t, err)

	// tamper with the stored payload behind the service's back
	tampered, err := compress([]byte(`[{"player":"Someone Else"}]`))
	require.NoError(t, err)
	store.batches["batch-1"].CompressedPayload = tampered

	_, err = svc.Replay(context.Background(), "batch-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	assert.Empty(t, ingest.rows, "corrupt batch must stage nothing")
	assert.Empty(t, ingest.metas)

	original, _ := store.Get(context.Background(), "batch-1")
	assert.Zero(t, original.ReplayCount)
}

func TestListReplayableOrder(t *testing.T) {
	store := newFakeArchiveStore()
	svc := newTestService(store, &fakeIngestStore{}, nil)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"batch-old", "batch-mid", "batch-new"} {
		_, err := svc.Archive(context.Background(), id, "sleeper", "weekly_projections", testRows(1))
		require.NoError(t, err)
		store.batches[id].ArchivedAt = base.Add(time.Duration(i) * time.Hour)
	}
	require.NoError(t, svc.MarkNonReplayable(context.Background(), "batch-mid", "bad import"))

	batches, err := svc.ListReplayable(context.Background())
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Equal(t, "batch-new", batches[0].BatchID)
	assert.Equal(t, "batch-old", batches[1].BatchID)
}

func TestReplaySerializedPerBatch(t *testing.T) {
	store := newFakeArchiveStore()
	locker := &fakeLocker{}
	svc := newTestService(store, &fakeIngestStore{}, locker)

	_, err := svc.Archive(context.Background(), "batch-1", "sleeper", "weekly_projections", testRows(1))
	require.NoError(t, err)

	_, err = svc.Replay(context.Background(), "batch-1")
	require.NoError(t, err)

	require.Len(t, locker.keys, 1)
	assert.Equal(t, "replay:batch-1", locker.keys[0])
}
