package reward

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/nebulasio/go-nbre/business/domain/window"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const runKind = "dip"

type Computer interface {
	Compute(ctx context.Context, start, end uint64) ([]entities.DIPInfo, error)
}

type ResultStore interface {
	SetRewardResult(key entities.WindowKey, result entities.DIPResult) error
}

type ResultPublisher interface {
	PublishRewardResult(ctx context.Context, result entities.DIPResult) error
}

type RunObserver interface {
	RunStarted(kind string)
	RunCompleted(kind string, duration time.Duration)
	RunFailed(kind string)
}

// Handler computes one reward distribution per interval once the chain has
// moved past it and serves the cached distributions.
type Handler struct {
	engine         Computer
	runner         *window.Runner[entities.WindowKey, entities.DIPResult]
	params         entities.DIPParams
	store          ResultStore
	publisher      ResultPublisher
	observer       RunObserver
	publishTimeout time.Duration
	logger         *zap.SugaredLogger
}

func NewHandler(engine Computer, pool window.Submitter, params entities.DIPParams, store ResultStore, publisher ResultPublisher, observer RunObserver, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		engine:         engine,
		runner:         window.NewRunner[entities.WindowKey, entities.DIPResult](pool),
		params:         params,
		store:          store,
		publisher:      publisher,
		observer:       observer,
		publishTimeout: 10 * time.Second,
		logger:         logger,
	}
}

// WindowFor maps a height to the latest full interval ending at or before
// it. It returns false while the first interval is not complete.
func (h *Handler) WindowFor(height uint64) (entities.WindowKey, bool) {
	start, interval := h.params.StartBlock, h.params.BlockInterval
	if interval == 0 || height+1 < start+interval {
		return entities.WindowKey{}, false
	}
	offset := (height - start + 1) / interval * interval
	return entities.WindowKey{
		Start:   start + offset - interval,
		End:     start + offset - 1,
		Version: h.params.Version,
	}, true
}

// Start schedules the interval that ended at nbreMax unless it is cached or
// in flight. Nothing is scheduled while nbre lags more than one interval
// behind the irreversible height.
func (h *Handler) Start(nbreMax, lib uint64) (bool, error) {
	key, ok := h.WindowFor(nbreMax)
	if !ok {
		return false, nil
	}
	if nbreMax+h.params.BlockInterval < lib {
		h.logger.Debugw("Skipping dip while syncing", "height", nbreMax, "lib", lib)
		return false, nil
	}

	scheduled, err := h.runner.Schedule(key, func(ctx context.Context) (entities.DIPResult, error) {
		return h.run(ctx, key)
	})
	if err != nil {
		return false, errors.Wrapf(err, "scheduling dip %s", key)
	}
	if scheduled {
		h.logger.Infow("Scheduled dip run", "window", key.String(), "height", nbreMax)
	}
	return scheduled, nil
}

func (h *Handler) run(ctx context.Context, key entities.WindowKey) (entities.DIPResult, error) {
	runID := uuid.NewString()
	h.logger.Infow("Starting dip run", "run", runID, "window", key.String())
	h.observer.RunStarted(runKind)
	begin := time.Now()

	dips, err := h.engine.Compute(ctx, key.Start, key.End)
	if err != nil {
		h.observer.RunFailed(runKind)
		return entities.DIPResult{}, errors.Wrapf(err, "run [%s]", runID)
	}
	result := entities.DIPResult{Dips: dips, Meta: entities.MetaFor(key)}

	if err := h.store.SetRewardResult(key, result); err != nil {
		h.observer.RunFailed(runKind)
		return entities.DIPResult{}, errors.Wrapf(err, "storing result of run [%s]", runID)
	}

	publishCtx, cancel := context.WithTimeout(ctx, h.publishTimeout)
	defer cancel()
	if err := h.publisher.PublishRewardResult(publishCtx, result); err != nil {
		h.logger.Errorw("Error publishing dip result", "run", runID, "window", key.String(), "error", err)
	}

	h.observer.RunCompleted(runKind, time.Since(begin))
	h.logger.Infow("Finished dip run", "run", runID, "window", key.String(), "rewards", len(dips), "duration", time.Since(begin))
	return result, nil
}

// Reward returns the distribution of the interval containing height, or
// entities.ErrNotComplete.
func (h *Handler) Reward(height uint64) (entities.DIPResult, error) {
	key, ok := h.WindowFor(height)
	if !ok {
		return entities.DIPResult{}, errors.Wrapf(entities.ErrNotComplete, "no dip interval before [%d]", height)
	}
	result, state := h.runner.Get(key)
	if state != window.Completed {
		return entities.DIPResult{}, errors.Wrapf(entities.ErrNotComplete, "dip %s is %s", key, state)
	}
	return result, nil
}

// CheckReward verifies a reward transfer of value to the given address
// against the distribution computed for height.
func (h *Handler) CheckReward(height uint64, to entities.Address, value *big.Int) error {
	result, err := h.Reward(height)
	if err != nil {
		return err
	}
	for _, dip := range result.Dips {
		if dip.Deployer == to && dip.Reward.Cmp(value) == 0 {
			return nil
		}
	}
	return errors.Wrapf(entities.ErrInvalidReward, "no reward of [%s] to [%s] at [%d]", value, to, height)
}

func (h *Handler) ParamList() entities.DIPParamList {
	return h.params.ParamList()
}

func (h *Handler) Restore(results []entities.DIPResult) {
	for _, result := range results {
		if result.Meta == nil {
			continue
		}
		key := entities.WindowKey{Start: result.Meta.StartHeight, End: result.Meta.EndHeight, Version: result.Meta.Version}
		h.runner.Restore(key, result)
	}
}
