// Package integration exercises the archive, resolution and integrity
// services together with in-memory stores, covering the full path an
// imported batch takes: archive, replay, resolve names, seal values.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	archivesvc "github.com/Ramsey-B/clover/pkg/archive"
	"github.com/Ramsey-B/clover/pkg/integrity"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalize"
	"github.com/Ramsey-B/clover/pkg/resolver"
	resolutionroutes "github.com/Ramsey-B/clover/pkg/routes/resolution"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func ptr(s string) *string {
	return &s
}

type memPlayerStore struct {
	players []models.CanonicalPlayer
}

func (s *memPlayerStore) FindByNormalizedName(_ context.Context, normalizedName string, position, team *string) ([]models.CanonicalPlayer, error) {
	var out []models.CanonicalPlayer
	for _, p := range s.players {
		if p.NormalizedName != normalizedName {
			continue
		}
		if position != nil && p.Position != *position {
			continue
		}
		if team != nil && (p.Team == nil || *p.Team != *team) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *memPlayerStore) ListResolvable(_ context.Context, position *string) ([]models.CanonicalPlayer, error) {
	var out []models.CanonicalPlayer
	for _, p := range s.players {
		if p.Status == models.PlayerStatusRetired {
			continue
		}
		if position != nil && p.Position != *position {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type memAliasStore struct {
	aliases map[string]string
}

func (s *memAliasStore) GetByAlias(_ context.Context, normalizedAlias string) (*models.AliasEntry, error) {
	playerID, ok := s.aliases[normalizedAlias]
	if !ok {
		return nil, nil
	}
	return &models.AliasEntry{NormalizedAlias: normalizedAlias, PlayerID: playerID}, nil
}

type memUnresolvedStore struct {
	entries []*models.UnresolvedPlayer
}

func (s *memUnresolvedStore) FindOpen(_ context.Context, rawName, source string) (*models.UnresolvedPlayer, error) {
	for _, e := range s.entries {
		if e.RawName == rawName && e.Source == source && e.Status == models.UnresolvedStatusOpen {
			return e, nil
		}
	}
	return nil, nil
}

func (s *memUnresolvedStore) Create(_ context.Context, entry *models.UnresolvedPlayer) (*models.UnresolvedPlayer, error) {
	entry.Status = models.UnresolvedStatusOpen
	s.entries = append(s.entries, entry)
	return entry, nil
}

type memArchiveStore struct {
	batches map[string]*models.ArchivedBatch
}

func (s *memArchiveStore) Create(_ context.Context, batch *models.ArchivedBatch) (*models.ArchivedBatch, error) {
	cp := *batch
	s.batches[batch.BatchID] = &cp
	return batch, nil
}

func (s *memArchiveStore) Get(_ context.Context, batchID string) (*models.ArchivedBatch, error) {
	b, ok := s.batches[batchID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *memArchiveStore) ListReplayable(_ context.Context, limit int) ([]models.ArchivedBatch, error) {
	var out []models.ArchivedBatch
	for _, b := range s.batches {
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

func (s *memArchiveStore) IncrementReplay(_ context.Context, batchID string) error {
	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %s not found", batchID)
	}
	b.ReplayCount++
	now := time.Now().UTC()
	b.LastReplayedAt = &now
	return nil
}

func (s *memArchiveStore) SetNonReplayable(_ context.Context, batchID, reason string) error {
	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %s not found", batchID)
	}
	b.CanReplay = false
	b.DisabledReason = &reason
	return nil
}

type memIngestStore struct {
	rows []*models.RawRow
	meta []*models.BatchMeta
}

func (s *memIngestStore) InsertRows(_ context.Context, rows []*models.RawRow) error {
	now := time.Now().UTC()
	for _, row := range rows {
		row.ID = uuid.New().String()
		row.Status = models.RawRowStatusPending
		row.CreatedAt = now
	}
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *memIngestStore) CreateBatchMeta(_ context.Context, meta *models.BatchMeta) (*models.BatchMeta, error) {
	s.meta = append(s.meta, meta)
	return meta, nil
}

type importRow struct {
	PlayerName string  `json:"player_name"`
	Position   string  `json:"position"`
	Team       string  `json:"team"`
	Value      float64 `json:"value"`
}

func seedPlayers() *memPlayerStore {
	return &memPlayerStore{players: []models.CanonicalPlayer{
		{ID: "p-allen", DisplayName: "Josh Allen", NormalizedName: normalize.Key("Josh Allen"), Position: models.PositionQB, Team: ptr("BUF"), Status: models.PlayerStatusActive},
		{ID: "p-brown", DisplayName: "A.J. Brown", NormalizedName: normalize.Key("A.J. Brown"), Position: models.PositionWR, Team: ptr("PHI"), Status: models.PlayerStatusActive},
		{ID: "p-stbrown", DisplayName: "Amon-Ra St. Brown", NormalizedName: normalize.Key("Amon-Ra St. Brown"), Position: models.PositionWR, Team: ptr("DET"), Status: models.PlayerStatusActive},
	}}
}

// An archived batch is replayed and every replayed row is pushed through
// resolution; resolved players get sealed valuations, misses land in the
// review queue once.
func TestArchiveReplayResolvePipeline(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	archiveStore := &memArchiveStore{batches: map[string]*models.ArchivedBatch{}}
	ingestStore := &memIngestStore{}
	archiver := archivesvc.NewService(archiveStore, ingestStore, nil, nil, logger, 50)

	players := seedPlayers()
	unresolved := &memUnresolvedStore{}
	aliases := &memAliasStore{aliases: map[string]string{
		normalize.Key("Hollywood Brown"): "p-brown",
	}}
	res := resolver.NewService(players, aliases, unresolved, matching.NewScorer(), nil, nil, logger, resolver.DefaultConfig())

	rows := []importRow{
		{PlayerName: "Josh Allen", Position: models.PositionQB, Team: "BUF", Value: 94.5},
		{PlayerName: "Hollywood Brown", Position: models.PositionWR, Team: "PHI", Value: 61.0},
		{PlayerName: "Totally Unknown Guy", Position: models.PositionRB, Team: "DAL", Value: 12.0},
	}
	var payloads []json.RawMessage
	for _, r := range rows {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		payloads = append(payloads, b)
	}

	archived, err := archiver.Archive(ctx, "", "sleeper", "raw_values", payloads)
	require.NoError(t, err)
	require.Equal(t, 3, archived.RowCount)

	result, err := archiver.Replay(ctx, archived.BatchID)
	require.NoError(t, err)
	require.Equal(t, 3, result.RowCount)
	require.NotEqual(t, archived.BatchID, result.NewBatchID)
	require.Len(t, ingestStore.rows, 3)

	guard := integrity.NewGuard(integrity.EnforcementStrict, logger)
	epoch := time.Now().UTC().Unix()
	sealedCount := 0

	for _, staged := range ingestStore.rows {
		assert.Equal(t, models.RawRowStatusPending, staged.Status)
		assert.Equal(t, result.NewBatchID, staged.BatchID)

		var row importRow
		require.NoError(t, json.Unmarshal(staged.Payload, &row))

		rr, err := res.Resolve(ctx, models.MatchContext{
			RawName:  row.PlayerName,
			Position: ptr(row.Position),
			Team:     ptr(row.Team),
			Source:   staged.Source,
		})
		require.NoError(t, err)

		if !rr.Resolved {
			continue
		}

		sealed := integrity.Seal(models.ValueBundle{
			PlayerID:     *rr.PlayerID,
			Value:        row.Value,
			Tier:         1,
			OverallRank:  sealedCount + 1,
			PositionRank: 1,
			ValueEpoch:   epoch,
			UpdatedAt:    time.Now().UTC(),
		})
		released, err := guard.Release(ctx, sealed)
		require.NoError(t, err)
		assert.Equal(t, row.Value, released.Value)
		sealedCount++
	}

	assert.Equal(t, 2, sealedCount)

	require.Len(t, unresolved.entries, 1)
	entry := unresolved.entries[0]
	assert.Equal(t, "Totally Unknown Guy", entry.RawName)
	assert.Equal(t, "sleeper", entry.Source)
	assert.Equal(t, models.UnresolvedStatusOpen, entry.Status)

	// replaying again dedupes against the open review entry
	result2, err := archiver.Replay(ctx, archived.BatchID)
	require.NoError(t, err)
	for _, staged := range ingestStore.rows {
		if staged.BatchID != result2.NewBatchID {
			continue
		}
		var row importRow
		require.NoError(t, json.Unmarshal(staged.Payload, &row))
		_, err := res.Resolve(ctx, models.MatchContext{RawName: row.PlayerName, Position: ptr(row.Position), Team: ptr(row.Team), Source: staged.Source})
		require.NoError(t, err)
	}
	assert.Len(t, unresolved.entries, 1)

	stored, err := archiveStore.Get(ctx, archived.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ReplayCount)
	assert.True(t, stored.CanReplay)
}

// A disabled batch stays queryable but refuses replay end to end
func TestPipelineDisabledBatchRefusesReplay(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	archiveStore := &memArchiveStore{batches: map[string]*models.ArchivedBatch{}}
	ingestStore := &memIngestStore{}
	archiver := archivesvc.NewService(archiveStore, ingestStore, nil, nil, logger, 50)

	payload, err := json.Marshal(importRow{PlayerName: "Josh Allen", Position: models.PositionQB, Team: "BUF", Value: 94.5})
	require.NoError(t, err)

	archived, err := archiver.Archive(ctx, "", "sleeper", "raw_values", []json.RawMessage{payload})
	require.NoError(t, err)

	require.NoError(t, archiver.MarkNonReplayable(ctx, archived.BatchID, "schema drift in source feed"))

	_, err = archiver.Replay(ctx, archived.BatchID)
	require.ErrorIs(t, err, archivesvc.ErrNotReplayable)
	assert.Empty(t, ingestStore.rows)

	replayable, err := archiver.ListReplayable(ctx)
	require.NoError(t, err)
	assert.Empty(t, replayable)
}

// The HTTP surface returns resolution results and validation errors the
// way clients expect.
func TestResolutionEndpoint(t *testing.T) {
	logger := testLogger()
	players := seedPlayers()
	unresolved := &memUnresolvedStore{}
	aliases := &memAliasStore{aliases: map[string]string{}}
	res := resolver.NewService(players, aliases, unresolved, matching.NewScorer(), nil, nil, logger, resolver.DefaultConfig())

	e := echo.New()
	resolutionroutes.NewHandler(res, logger).RegisterRoutes(e.Group("/api/v1"))

	t.Run("resolves a known name", func(t *testing.T) {
		body := `{"raw_name": "AJ Brown", "position": "WR", "source": "sleeper"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var result models.ResolutionResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Resolved)
		require.NotNil(t, result.PlayerID)
		assert.Equal(t, "p-brown", *result.PlayerID)
		assert.Equal(t, models.MatchTypeExact, result.MatchType)
		assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	})

	t.Run("rejects a request missing the source", func(t *testing.T) {
		body := `{"raw_name": "AJ Brown"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resolves a batch keyed by raw name", func(t *testing.T) {
		body := `{"items": [
			{"raw_name": "Josh Allen", "position": "QB", "source": "sleeper"},
			{"raw_name": "Amon-Ra Brown", "position": "WR", "source": "sleeper"}
		]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve/batch", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var results map[string]models.ResolutionResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
		require.Len(t, results, 2)
		assert.True(t, results["Josh Allen"].Resolved)
	})
}
