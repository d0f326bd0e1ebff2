// Package resolver maps free-text player names from external feeds onto
// canonical player records.
package resolver

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalize"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// PlayerStore reads canonical players
type PlayerStore interface {
	FindByNormalizedName(ctx context.Context, normalizedName string, position, team *string) ([]models.CanonicalPlayer, error)
	ListResolvable(ctx context.Context, position *string) ([]models.CanonicalPlayer, error)
}

// AliasStore reads the curated alias table
type AliasStore interface {
	GetByAlias(ctx context.Context, normalizedAlias string) (*models.AliasEntry, error)
}

// UnresolvedStore manages the review queue
type UnresolvedStore interface {
	FindOpen(ctx context.Context, rawName, source string) (*models.UnresolvedPlayer, error)
	Create(ctx context.Context, entry *models.UnresolvedPlayer) (*models.UnresolvedPlayer, error)
}

// Locker serializes review-queue registration per (source, name). Optional;
// the store's unique index is the backstop when no locker is wired.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl, wait time.Duration, fn func() error) error
}

// Config holds resolution thresholds
type Config struct {
	MinMatchScore      float64 // floor for accepting a fuzzy match
	AutoApplyThreshold float64 // floor for callers to write through without review
	AmbiguityMargin    float64 // top two fuzzy scores closer than this refuse to pick
	PositionBonus      float64
	TeamBonus          float64
	MaxCandidates      int // cap on ranked results after scoring, 0 for none
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		MinMatchScore:      0.75,
		AutoApplyThreshold: 0.85,
		AmbiguityMargin:    0.10,
		PositionBonus:      0.10,
		TeamBonus:          0.05,
		MaxCandidates:      500,
	}
}

// Service resolves raw names through exact, alias and fuzzy stages in order
type Service struct {
	players    PlayerStore
	aliases    AliasStore
	unresolved UnresolvedStore
	scorer     *matching.Scorer
	locker     Locker
	emitter    *events.Emitter
	logger     ectologger.Logger
	cfg        Config
}

// NewService creates a new resolver service. locker and emitter may be nil.
func NewService(
	players PlayerStore,
	aliases AliasStore,
	unresolved UnresolvedStore,
	scorer *matching.Scorer,
	locker Locker,
	emitter *events.Emitter,
	logger ectologger.Logger,
	cfg Config,
) *Service {
	return &Service{
		players:    players,
		aliases:    aliases,
		unresolved: unresolved,
		scorer:     scorer,
		locker:     locker,
		emitter:    emitter,
		logger:     logger,
		cfg:        cfg,
	}
}

// Resolve maps one raw name onto a canonical player. An unmatched or
// ambiguous name is a normal result with Resolved=false; only store
// failures return an error.
func (s *Service) Resolve(ctx context.Context, mc models.MatchContext) (models.ResolutionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.Resolve")
	defer span.End()

	key := normalize.Key(mc.RawName)
	if key == "" {
		s.logger.WithContext(ctx).WithFields(map[string]any{"raw_name": mc.RawName, "source": mc.Source}).Warn("Refusing to resolve name that normalizes to empty")
		metrics.RecordResolution(mc.Source, models.MatchTypeNone)
		return models.ResolutionResult{MatchType: models.MatchTypeNone}, nil
	}

	// Stage 1: exact match on normalized name, narrowed by hints
	exact, err := s.players.FindByNormalizedName(ctx, key, mc.Position, mc.Team)
	if err != nil {
		return models.ResolutionResult{}, err
	}
	if len(exact) == 1 {
		metrics.RecordResolution(mc.Source, models.MatchTypeExact)
		return models.ResolutionResult{
			PlayerID:   &exact[0].ID,
			Confidence: 1.0,
			MatchType:  models.MatchTypeExact,
			Resolved:   true,
		}, nil
	}
	if len(exact) > 1 {
		// Two canonical players share a normalized name even after the
		// hint filters. Guessing here would be a silent wrong write, so
		// this goes to review like any other ambiguity.
		s.logger.WithContext(ctx).WithFields(map[string]any{"raw_name": mc.RawName, "source": mc.Source}).Warn("Multiple exact matches for normalized name, refusing to pick")
		return s.refuseAmbiguous(ctx, mc)
	}

	// Stage 2: alias table, no hint filters
	aliasEntry, err := s.aliases.GetByAlias(ctx, key)
	if err != nil {
		return models.ResolutionResult{}, err
	}
	if aliasEntry != nil {
		metrics.RecordResolution(mc.Source, models.MatchTypeAlias)
		return models.ResolutionResult{
			PlayerID:   &aliasEntry.PlayerID,
			Confidence: 0.95,
			MatchType:  models.MatchTypeAlias,
			Resolved:   true,
		}, nil
	}

	// Stage 3: fuzzy scoring over the full resolvable pool. Every candidate
	// is scored; the cap applies to the ranked results, never to the fetch,
	// so the best match cannot hide behind a truncated pool.
	candidates, err := s.players.ListResolvable(ctx, mc.Position)
	if err != nil {
		return models.ResolutionResult{}, err
	}

	scored := s.scoreCandidates(mc, candidates)
	if len(scored) > 0 && scored[0].score >= s.cfg.MinMatchScore {
		if len(scored) > 1 && scored[0].score-scored[1].score < s.cfg.AmbiguityMargin {
			s.logger.WithContext(ctx).WithFields(map[string]any{
				"raw_name":     mc.RawName,
				"source":       mc.Source,
				"top_player":   scored[0].player.ID,
				"top_score":    scored[0].score,
				"second_score": scored[1].score,
			}).Warn("Ambiguous fuzzy match, refusing to pick")
			return s.refuseAmbiguous(ctx, mc)
		}

		metrics.RecordResolution(mc.Source, models.MatchTypeFuzzy)
		return models.ResolutionResult{
			PlayerID:   &scored[0].player.ID,
			Confidence: scored[0].score,
			MatchType:  models.MatchTypeFuzzy,
			Resolved:   true,
		}, nil
	}

	// Stage 4: register in the review queue
	if err := s.registerUnresolved(ctx, mc, key); err != nil {
		return models.ResolutionResult{}, err
	}

	metrics.RecordResolution(mc.Source, models.MatchTypeNone)
	return models.ResolutionResult{MatchType: models.MatchTypeNone}, nil
}

// ResolveBatch resolves a batch of names sequentially, keyed by raw name.
// Each item is independent; a store failure aborts the batch with the
// error rather than masking it as a non-match.
func (s *Service) ResolveBatch(ctx context.Context, contexts []models.MatchContext) (map[string]models.ResolutionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.ResolveBatch")
	defer span.End()

	results := make(map[string]models.ResolutionResult, len(contexts))
	for _, mc := range contexts {
		result, err := s.Resolve(ctx, mc)
		if err != nil {
			return nil, err
		}
		results[mc.RawName] = result
	}

	return results, nil
}

type scoredCandidate struct {
	player models.CanonicalPlayer
	score  float64
}

func (s *Service) scoreCandidates(mc models.MatchContext, candidates []models.CanonicalPlayer) []scoredCandidate {
	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := s.scorer.Similarity(mc.RawName, c.DisplayName)
		if score <= 0 {
			continue
		}

		if mc.Position != nil && *mc.Position == c.Position {
			score += s.cfg.PositionBonus
		}
		if mc.Team != nil && c.Team != nil && *mc.Team == *c.Team {
			score += s.cfg.TeamBonus
		}
		if score > 1.0 {
			score = 1.0
		}

		scored = append(scored, scoredCandidate{player: c, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].player.DisplayName < scored[j].player.DisplayName
	})

	if s.cfg.MaxCandidates > 0 && len(scored) > s.cfg.MaxCandidates {
		scored = scored[:s.cfg.MaxCandidates]
	}

	return scored
}

func (s *Service) refuseAmbiguous(ctx context.Context, mc models.MatchContext) (models.ResolutionResult, error) {
	metrics.AmbiguousResolutionsTotal.WithLabelValues(mc.Source).Inc()

	if err := s.registerUnresolved(ctx, mc, normalize.Key(mc.RawName)); err != nil {
		return models.ResolutionResult{}, err
	}

	return models.ResolutionResult{MatchType: models.MatchTypeNone, Ambiguous: true}, nil
}

// registerUnresolved adds a review-queue entry unless an open one already
// exists for the same raw name and source. The check-then-insert pair is
// serialized per (source, normalized name) when a locker is wired; the
// store's partial unique index catches the race otherwise.
func (s *Service) registerUnresolved(ctx context.Context, mc models.MatchContext, key string) error {
	register := func() error {
		existing, err := s.unresolved.FindOpen(ctx, mc.RawName, mc.Source)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		entry, err := s.unresolved.Create(ctx, &models.UnresolvedPlayer{
			RawName:  mc.RawName,
			Position: mc.Position,
			Team:     mc.Team,
			Source:   mc.Source,
		})
		if err != nil {
			return err
		}

		metrics.UnresolvedRegisteredTotal.WithLabelValues(mc.Source).Inc()
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"raw_name": mc.RawName,
			"source":   mc.Source,
		}).Info("Registered unresolved player for review")

		if err := s.emitter.EmitPlayerUnresolved(ctx, entry.ID, entry.RawName, entry.Source); err != nil {
			// event emission is best-effort; the queue row is the record
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit unresolved event")
		}

		return nil
	}

	if s.locker == nil {
		return register()
	}

	return s.locker.WithLock(ctx, "unresolved:"+mc.Source+":"+key, 10*time.Second, 5*time.Second, register)
}
