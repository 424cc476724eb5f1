package pebbledb

import (
	"encoding/binary"
	"encoding/json"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
)

const (
	lastProcessedHeightKey = 0x00
	rankResultPrefix       = 0x01
	rewardResultPrefix     = 0x02
)

type Store struct {
	db *pebble.DB
}

func NewStore(storeDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "nbre-store"), &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble db")
	}

	return &Store{db: db}, nil
}

func (ps *Store) SetLastProcessedHeight(height uint64) error {
	value := binary.BigEndian.AppendUint64(nil, height)

	err := ps.db.Set([]byte{lastProcessedHeightKey}, value, pebble.Sync)
	if err != nil {
		return errors.Wrap(err, "setting last processed height")
	}

	return nil
}

func (ps *Store) GetLastProcessedHeight() (uint64, error) {
	value, closer, err := ps.db.Get([]byte{lastProcessedHeightKey})
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "getting last processed height")
	}
	defer closer.Close()

	return binary.BigEndian.Uint64(value), nil
}

func resultKey(prefix byte, key entities.WindowKey) []byte {
	return append([]byte{prefix}, key.Bytes()...)
}

func (ps *Store) set(prefix byte, key entities.WindowKey, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "marshalling result %s", key)
	}

	err = ps.db.Set(resultKey(prefix, key), data, pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "setting result %s", key)
	}

	return nil
}

func (ps *Store) get(prefix byte, key entities.WindowKey, value any) error {
	data, closer, err := ps.db.Get(resultKey(prefix, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "getting result %s", key)
	}
	defer closer.Close()

	return json.Unmarshal(data, value)
}

// scan calls fn with the raw value of every result stored under prefix, in
// window key order.
func (ps *Store) scan(prefix byte, fn func(data []byte) error) error {
	iter, err := ps.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefix},
		UpperBound: []byte{prefix + 1},
	})
	if err != nil {
		return errors.Wrap(err, "creating iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return errors.Wrap(err, "getting value from iter")
		}
		if err := fn(value); err != nil {
			return errors.Wrapf(err, "decoding result [%x]", iter.Key()[1:])
		}
	}

	return nil
}

func (ps *Store) SetRankResult(key entities.WindowKey, result entities.NRResult) error {
	return ps.set(rankResultPrefix, key, result)
}

func (ps *Store) GetRankResult(key entities.WindowKey) (entities.NRResult, error) {
	var result entities.NRResult
	err := ps.get(rankResultPrefix, key, &result)
	return result, err
}

func (ps *Store) GetRankResults() ([]entities.NRResult, error) {
	var results []entities.NRResult
	err := ps.scan(rankResultPrefix, func(data []byte) error {
		var result entities.NRResult
		if err := json.Unmarshal(data, &result); err != nil {
			return err
		}
		results = append(results, result)
		return nil
	})
	return results, err
}

func (ps *Store) SetRewardResult(key entities.WindowKey, result entities.DIPResult) error {
	return ps.set(rewardResultPrefix, key, result)
}

func (ps *Store) GetRewardResult(key entities.WindowKey) (entities.DIPResult, error) {
	var result entities.DIPResult
	err := ps.get(rewardResultPrefix, key, &result)
	return result, err
}

func (ps *Store) GetRewardResults() ([]entities.DIPResult, error) {
	var results []entities.DIPResult
	err := ps.scan(rewardResultPrefix, func(data []byte) error {
		var result entities.DIPResult
		if err := json.Unmarshal(data, &result); err != nil {
			return err
		}
		results = append(results, result)
		return nil
	})
	return results, err
}

func (ps *Store) Close() error {
	return ps.db.Close()
}
