package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultPageSize = 1000

type Client struct {
	index    string
	pageSize int
	esClient *elasticsearch.Client
	logger   *zap.SugaredLogger
}

func NewClient(addresses []string, index string, timeout time.Duration, logger *zap.SugaredLogger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: addresses,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: timeout,
		},
	}

	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating elasticsearch client")
	}

	return &Client{
		index:    index,
		pageSize: defaultPageSize,
		esClient: esClient,
		logger:   logger,
	}, nil
}

// IndexTransactions bulk indexes txs, using the hash as document id.
func (es *Client) IndexTransactions(ctx context.Context, txs []entities.TransactionInfo) error {
	if len(txs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, tx := range txs {
		// Metadata line for each document
		meta := []byte(fmt.Sprintf(`{ "index": { "_index": "%s", "_id": "%s" } }%s`, es.index, tx.Hash, "\n"))
		buf.Write(meta)

		data, err := json.Marshal(tx)
		if err != nil {
			return errors.Wrapf(err, "serializing transaction [%s]", tx.Hash)
		}
		buf.Write(data)
		buf.Write([]byte("\n"))
	}

	res, err := es.esClient.Bulk(bytes.NewReader(buf.Bytes()),
		es.esClient.Bulk.WithContext(ctx),
		es.esClient.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return errors.Wrap(err, "bulk request failed")
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Errorf("bulk request error: %s", res.String())
	}

	var response bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return errors.Wrap(err, "decoding bulk response")
	}
	if response.Errors {
		return errors.Errorf("bulk request indexed [%d] documents with errors", len(response.Items))
	}

	return nil
}

type bulkResponse struct {
	Errors bool              `json:"errors"`
	Items  []json.RawMessage `json:"items"`
}
