package rank

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nebulasio/go-nbre/business/domain/window"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const runKind = "nr"

type Computer interface {
	Compute(ctx context.Context, start, end, version uint64) ([]entities.NRInfo, error)
}

type ChainStatus interface {
	// TailHeight is the height of the latest block known to the node.
	TailHeight(ctx context.Context) (uint64, error)
}

type ResultStore interface {
	SetRankResult(key entities.WindowKey, result entities.NRResult) error
}

type ResultPublisher interface {
	PublishRankResult(ctx context.Context, result entities.NRResult) error
}

type RunObserver interface {
	RunStarted(kind string)
	RunCompleted(kind string, duration time.Duration)
	RunFailed(kind string)
}

// Handler runs rank computations asynchronously, one per window key, and
// serves their cached results.
type Handler struct {
	engine         Computer
	runner         *window.Runner[entities.WindowKey, entities.NRResult]
	chain          ChainStatus
	store          ResultStore
	publisher      ResultPublisher
	observer       RunObserver
	publishTimeout time.Duration
	logger         *zap.SugaredLogger
}

func NewHandler(engine Computer, pool window.Submitter, chain ChainStatus, store ResultStore, publisher ResultPublisher, observer RunObserver, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		engine:         engine,
		runner:         window.NewRunner[entities.WindowKey, entities.NRResult](pool),
		chain:          chain,
		store:          store,
		publisher:      publisher,
		observer:       observer,
		publishTimeout: 10 * time.Second,
		logger:         logger,
	}
}

// Start validates the range against the chain tail and schedules a run
// unless one exists for the key. It returns the handle to poll.
func (h *Handler) Start(ctx context.Context, start, end, version uint64) (string, error) {
	if start >= end {
		return "", errors.Wrapf(entities.ErrInvalidHeightInterval, "[%d-%d]", start, end)
	}
	tail, err := h.chain.TailHeight(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting tail height")
	}
	if end > tail {
		return "", errors.Wrapf(entities.ErrInvalidEndHeight, "end [%d] beyond tail [%d]", end, tail)
	}
	if _, err := ScoreFor(version); err != nil {
		return "", err
	}

	key := entities.WindowKey{Start: start, End: end, Version: version}
	scheduled, err := h.runner.Schedule(key, func(ctx context.Context) (entities.NRResult, error) {
		return h.run(ctx, key)
	})
	if err != nil {
		return "", errors.Wrapf(err, "scheduling nr %s", key)
	}
	if scheduled {
		h.logger.Infow("Scheduled nr run", "window", key.String(), "handle", key.Handle())
	}
	return key.Handle(), nil
}

func (h *Handler) run(ctx context.Context, key entities.WindowKey) (entities.NRResult, error) {
	runID := uuid.NewString()
	h.logger.Infow("Starting nr run", "run", runID, "window", key.String())
	h.observer.RunStarted(runKind)
	begin := time.Now()

	nrs, err := h.engine.Compute(ctx, key.Start, key.End, key.Version)
	if err != nil {
		h.observer.RunFailed(runKind)
		return entities.NRResult{}, errors.Wrapf(err, "run [%s]", runID)
	}
	result := entities.NRResult{NRs: nrs, Meta: entities.MetaFor(key)}

	if err := h.store.SetRankResult(key, result); err != nil {
		h.observer.RunFailed(runKind)
		return entities.NRResult{}, errors.Wrapf(err, "storing result of run [%s]", runID)
	}

	publishCtx, cancel := context.WithTimeout(ctx, h.publishTimeout)
	defer cancel()
	if err := h.publisher.PublishRankResult(publishCtx, result); err != nil {
		h.logger.Errorw("Error publishing nr result", "run", runID, "window", key.String(), "error", err)
	}

	h.observer.RunCompleted(runKind, time.Since(begin))
	h.logger.Infow("Finished nr run", "run", runID, "window", key.String(), "accounts", len(nrs), "duration", time.Since(begin))
	return result, nil
}

// Result returns the completed result for a handle, or
// entities.ErrNotComplete while it is pending or unknown.
func (h *Handler) Result(handle string) (entities.NRResult, error) {
	key, err := entities.ParseHandle(handle)
	if err != nil {
		return entities.NRResult{}, err
	}
	return h.ResultFor(key)
}

func (h *Handler) ResultFor(key entities.WindowKey) (entities.NRResult, error) {
	result, state := h.runner.Get(key)
	if state != window.Completed {
		return entities.NRResult{}, errors.Wrapf(entities.ErrNotComplete, "nr %s is %s", key, state)
	}
	return result, nil
}

// Scores returns the ranks of a window, from the cache when completed and
// computed in place otherwise. In place computations are not cached.
func (h *Handler) Scores(ctx context.Context, start, end, version uint64) ([]entities.NRInfo, error) {
	key := entities.WindowKey{Start: start, End: end, Version: version}
	if result, state := h.runner.Get(key); state == window.Completed {
		return result.NRs, nil
	}
	return h.engine.Compute(ctx, start, end, version)
}

// Restore seeds the cache with persisted results.
func (h *Handler) Restore(results []entities.NRResult) {
	for _, result := range results {
		if result.Meta == nil {
			continue
		}
		key := entities.WindowKey{Start: result.Meta.StartHeight, End: result.Meta.EndHeight, Version: result.Meta.Version}
		h.runner.Restore(key, result)
	}
}
