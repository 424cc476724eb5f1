package neb

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/nebulasio/go-nbre/entities"
	"golang.org/x/sync/singleflight"
)

type StateReader interface {
	GetBalance(ctx context.Context, address entities.Address, height uint64) (*big.Int, error)
	Deployer(ctx context.Context, contract entities.Address) (entities.Address, error)
}

// CachingReader keeps historical balances and contract deployers, which do
// not change once read, for a limited time. Concurrent misses for the same
// key share one remote read; misses for different keys do not wait on each
// other.
type CachingReader struct {
	reader        StateReader
	balanceCache  *ttlcache.Cache[string, *big.Int]
	balanceLoads  singleflight.Group
	deployerCache *ttlcache.Cache[entities.Address, entities.Address]
	deployerLoads singleflight.Group
}

func NewCachingReader(reader StateReader, ttl time.Duration, capacity uint64) *CachingReader {
	return &CachingReader{
		reader: reader,
		balanceCache: ttlcache.New[string, *big.Int](
			ttlcache.WithTTL[string, *big.Int](ttl),
			ttlcache.WithCapacity[string, *big.Int](capacity),
		),
		deployerCache: ttlcache.New[entities.Address, entities.Address](
			ttlcache.WithTTL[entities.Address, entities.Address](ttl),
			ttlcache.WithCapacity[entities.Address, entities.Address](capacity),
		),
	}
}

// Start runs the expiry loops until ctx is done.
func (c *CachingReader) Start(ctx context.Context) {
	go c.balanceCache.Start()
	go c.deployerCache.Start()
	<-ctx.Done()
	c.balanceCache.Stop()
	c.deployerCache.Stop()
}

func (c *CachingReader) GetBalance(ctx context.Context, address entities.Address, height uint64) (*big.Int, error) {
	key := fmt.Sprintf("%s@%d", address, height)
	if item := c.balanceCache.Get(key); item != nil {
		return new(big.Int).Set(item.Value()), nil
	}

	loaded, err, _ := c.balanceLoads.Do(key, func() (any, error) {
		balance, err := c.reader.GetBalance(ctx, address, height)
		if err != nil {
			return nil, err
		}
		c.balanceCache.Set(key, new(big.Int).Set(balance), ttlcache.DefaultTTL)
		return balance, nil
	})
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(loaded.(*big.Int)), nil
}

func (c *CachingReader) Deployer(ctx context.Context, contract entities.Address) (entities.Address, error) {
	if item := c.deployerCache.Get(contract); item != nil {
		return item.Value(), nil
	}

	loaded, err, _ := c.deployerLoads.Do(contract.String(), func() (any, error) {
		deployer, err := c.reader.Deployer(ctx, contract)
		if err != nil {
			return nil, err
		}
		c.deployerCache.Set(contract, deployer, ttlcache.DefaultTTL)
		return deployer, nil
	})
	if err != nil {
		return entities.Address{}, err
	}
	return loaded.(entities.Address), nil
}
