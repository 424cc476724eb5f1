package chainsync

import (
	"context"
	"sync"
	"time"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/nebulasio/go-nbre/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type NodeClient interface {
	GetChainStatus(ctx context.Context) (entities.ChainStatus, error)
}

type IndexClient interface {
	// LatestHeight is the highest block height with indexed transactions.
	LatestHeight(ctx context.Context) (uint64, error)
}

type RewardScheduler interface {
	Start(nbreMax, lib uint64) (bool, error)
}

type DataStore interface {
	SetLastProcessedHeight(height uint64) error
	GetLastProcessedHeight() (uint64, error)
}

// Processor periodically derives the nbre max height from the node and the
// transaction index and triggers the reward scheduling for it. Windows whose
// run failed are scheduled again on the next check.
type Processor struct {
	node          NodeClient
	index         IndexClient
	rewards       RewardScheduler
	dataStore     DataStore
	metrics       *metrics.Metrics
	checkInterval time.Duration
	logger        *zap.SugaredLogger

	statusLock sync.RWMutex
	status     entities.SyncStatus
}

func NewProcessor(node NodeClient, index IndexClient, rewards RewardScheduler, dataStore DataStore, m *metrics.Metrics, checkInterval time.Duration, logger *zap.SugaredLogger) *Processor {
	return &Processor{
		node:          node,
		index:         index,
		rewards:       rewards,
		dataStore:     dataStore,
		metrics:       m,
		checkInterval: checkInterval,
		logger:        logger,
	}
}

func (p *Processor) Synchronize(ctx context.Context) error {
	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		if err := p.sync(ctx); err != nil {
			p.logger.Errorw("Check failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Processor) sync(ctx context.Context) error {
	status, err := p.node.GetChainStatus(ctx)
	if err != nil {
		return errors.Wrap(err, "getting chain status")
	}
	p.metrics.SetSourceHeights(status.TailHeight, status.LibHeight)

	indexed, err := p.index.LatestHeight(ctx)
	if err != nil {
		return errors.Wrap(err, "getting indexed height")
	}
	nbreMax := min(status.TailHeight, indexed)
	p.metrics.SetNbreMaxHeight(nbreMax)

	last, err := p.dataStore.GetLastProcessedHeight()
	if err != nil && !errors.Is(err, entities.ErrStoreEntityNotFound) {
		return errors.Wrap(err, "getting last processed height")
	}
	if nbreMax < last {
		p.logger.Warnw("Nbre height decreased", "height", nbreMax, "last", last)
	}

	scheduled, err := p.rewards.Start(nbreMax, status.LibHeight)
	if err != nil {
		return errors.Wrapf(err, "starting dip at [%d]", nbreMax)
	}
	if scheduled {
		p.metrics.SetScheduledDipHeight(nbreMax)
	}

	p.setStatus(entities.SyncStatus{Chain: status, IndexedHeight: indexed, ProcessedHeight: nbreMax})

	if nbreMax != last {
		if err := p.dataStore.SetLastProcessedHeight(nbreMax); err != nil {
			return errors.Wrapf(err, "storing last processed height [%d]", nbreMax)
		}
		p.logger.Debugw("Processed height", "height", nbreMax, "tail", status.TailHeight, "lib", status.LibHeight)
	}
	return nil
}

// Status returns the heights seen by the last successful check.
func (p *Processor) Status() entities.SyncStatus {
	p.statusLock.RLock()
	defer p.statusLock.RUnlock()
	return p.status
}

func (p *Processor) setStatus(status entities.SyncStatus) {
	p.statusLock.Lock()
	defer p.statusLock.Unlock()
	p.status = status
}
