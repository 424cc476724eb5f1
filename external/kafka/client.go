package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/nebulasio/go-nbre/metrics"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

const (
	KindRank   = "nr"
	KindReward = "dip"
)

type KafkaClient interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

type Topics struct {
	Rank   string
	Reward string
}

// Client publishes completed results. Every rank or reward entry becomes one
// record keyed by the window handle, so all records of a window land on the
// same partition.
type Client struct {
	kcl     KafkaClient
	topics  Topics
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
}

func NewClient(kafkaClient KafkaClient, topics Topics, m *metrics.Metrics, logger *zap.SugaredLogger) *Client {
	return &Client{
		kcl:     kafkaClient,
		topics:  topics,
		metrics: m,
		logger:  logger,
	}
}

func (kc *Client) PublishRankResult(ctx context.Context, result entities.NRResult) error {
	if result.Meta == nil {
		return errors.New("rank result without window")
	}
	records, err := rankRecords(kc.topics.Rank, result)
	if err != nil {
		return errors.Wrap(err, "creating rank records")
	}
	if err := kc.produce(ctx, records); err != nil {
		return errors.Wrapf(err, "producing rank result [%d-%d]", result.Meta.StartHeight, result.Meta.EndHeight)
	}
	kc.metrics.IncPublished(KindRank)
	return nil
}

func (kc *Client) PublishRewardResult(ctx context.Context, result entities.DIPResult) error {
	if result.Meta == nil {
		return errors.New("reward result without window")
	}
	records, err := rewardRecords(kc.topics.Reward, result)
	if err != nil {
		return errors.Wrap(err, "creating reward records")
	}
	if err := kc.produce(ctx, records); err != nil {
		return errors.Wrapf(err, "producing reward result [%d-%d]", result.Meta.StartHeight, result.Meta.EndHeight)
	}
	kc.metrics.IncPublished(KindReward)
	return nil
}

func (kc *Client) produce(ctx context.Context, records []*kgo.Record) error {
	wg := sync.WaitGroup{}
	errorChannel := make(chan error, len(records))

	for _, record := range records {
		wg.Add(1)
		kc.kcl.Produce(ctx, record, func(_ *kgo.Record, err error) {
			defer wg.Done()
			if err != nil {
				kc.logger.Errorw("Error producing record", "topic", record.Topic, "error", err)
			}
			errorChannel <- err
		})
	}

	wg.Wait()
	close(errorChannel)

	var failed int
	for err := range errorChannel {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("encountered [%d] errors while producing [%d] records", failed, len(records))
	}
	return nil
}

func windowKey(meta *entities.ResultMeta) []byte {
	return []byte(entities.WindowKey{Start: meta.StartHeight, End: meta.EndHeight, Version: meta.Version}.Handle())
}

// rankRecords splits a result into single entry results. An empty result is
// still published once so consumers see the window.
func rankRecords(topic string, result entities.NRResult) ([]*kgo.Record, error) {
	key := windowKey(result.Meta)
	if len(result.NRs) == 0 {
		record, err := newRecord(topic, key, result)
		if err != nil {
			return nil, err
		}
		return []*kgo.Record{record}, nil
	}

	records := make([]*kgo.Record, 0, len(result.NRs))
	for _, info := range result.NRs {
		record, err := newRecord(topic, key, entities.NRResult{NRs: []entities.NRInfo{info}, Meta: result.Meta})
		if err != nil {
			return nil, errors.Wrapf(err, "rank of [%s]", info.Address)
		}
		records = append(records, record)
	}
	return records, nil
}

func rewardRecords(topic string, result entities.DIPResult) ([]*kgo.Record, error) {
	key := windowKey(result.Meta)
	if len(result.Dips) == 0 {
		record, err := newRecord(topic, key, result)
		if err != nil {
			return nil, err
		}
		return []*kgo.Record{record}, nil
	}

	records := make([]*kgo.Record, 0, len(result.Dips))
	for _, info := range result.Dips {
		record, err := newRecord(topic, key, entities.DIPResult{Dips: []entities.DIPInfo{info}, Meta: result.Meta})
		if err != nil {
			return nil, errors.Wrapf(err, "reward of [%s]", info.Contract)
		}
		records = append(records, record)
	}
	return records, nil
}

func newRecord(topic string, key []byte, payload any) (*kgo.Record, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling record to json")
	}
	return &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}, nil
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRankResult(context.Context, entities.NRResult) error {
	return nil
}

func (NopPublisher) PublishRewardResult(context.Context, entities.DIPResult) error {
	return nil
}
