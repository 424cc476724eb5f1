package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
)

type elasticHits struct {
	Took int `json:"took"`
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
			Sort   []any           `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		MaxHeight struct {
			Value *float64 `json:"value"`
		} `json:"max_height"`
	} `json:"aggregations"`
}

type rangeQuery struct {
	Size        int              `json:"size"`
	Query       map[string]any   `json:"query"`
	Sort        []map[string]any `json:"sort"`
	SearchAfter []any            `json:"search_after,omitempty"`
}

func heightRangeQuery(start, end uint64, size int, after []any) rangeQuery {
	return rangeQuery{
		Size: size,
		Query: map[string]any{
			"range": map[string]any{
				"height": map[string]any{"gte": start, "lte": end},
			},
		},
		Sort: []map[string]any{
			{"height": "asc"},
			{"hash": "asc"},
		},
		SearchAfter: after,
	}
}

// ReadTransactions pages through all transactions of [start, end] ordered by
// height and hash.
func (es *Client) ReadTransactions(ctx context.Context, start, end uint64) ([]entities.TransactionInfo, error) {
	txs := make([]entities.TransactionInfo, 0)
	var after []any
	for {
		response, err := es.search(ctx, heightRangeQuery(start, end, es.pageSize, after))
		if err != nil {
			return nil, errors.Wrapf(err, "searching transactions [%d-%d]", start, end)
		}
		if response.Took > 1000 {
			es.logger.Warnw("Slow elastic response", "start", start, "end", end, "hits", len(response.Hits.Hits), "took", response.Took)
		}

		for _, hit := range response.Hits.Hits {
			var tx entities.TransactionInfo
			if err := json.Unmarshal(hit.Source, &tx); err != nil {
				return nil, errors.Wrapf(err, "decoding transaction [%s]", hit.ID)
			}
			txs = append(txs, tx)
		}

		hits := response.Hits.Hits
		if len(hits) < es.pageSize {
			return txs, nil
		}
		after = hits[len(hits)-1].Sort
	}
}

// LatestHeight returns the highest indexed transaction height, 0 for an
// empty index.
func (es *Client) LatestHeight(ctx context.Context) (uint64, error) {
	query := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"max_height": map[string]any{"max": map[string]any{"field": "height"}},
		},
	}
	response, err := es.search(ctx, query)
	if err != nil {
		return 0, errors.Wrap(err, "searching max height")
	}
	if response.Aggregations.MaxHeight.Value == nil {
		return 0, nil
	}
	return uint64(*response.Aggregations.MaxHeight.Value), nil
}

func (es *Client) search(ctx context.Context, query any) (*elasticHits, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "encoding query")
	}

	res, err := es.esClient.Search(
		es.esClient.Search.WithContext(ctx),
		es.esClient.Search.WithIndex(es.index),
		es.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "calling elastic")
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			es.logger.Errorw("Error closing body", "error", err)
		}
	}(res.Body)

	if res.IsError() {
		return nil, responseError(res)
	}
	if res.HasWarnings() {
		es.logger.Warnw("Elastic returned warnings", "warnings", res.Warnings())
	}

	var response elasticHits
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, errors.Wrap(err, "decoding response information")
	}
	return &response, nil
}

func responseError(res *esapi.Response) error {
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		return errors.Wrapf(err, "decoding error information [%s]", res.Status())
	}
	return errors.Errorf("[%s] %s: %s", res.Status(), e.Error.Type, e.Error.Reason)
}
