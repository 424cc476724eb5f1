package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTransaction(t *testing.T, hash string, height uint64) entities.TransactionInfo {
	from, err := entities.NewAddress(entities.AccountAddress, bytes.Repeat([]byte{1}, 20))
	require.NoError(t, err)
	to, err := entities.NewAddress(entities.ContractAddress, bytes.Repeat([]byte{2}, 20))
	require.NoError(t, err)
	return entities.TransactionInfo{
		Hash:      hash,
		From:      from,
		To:        to,
		Value:     big.NewInt(int64(height) * 10),
		Timestamp: 1744610180,
		Height:    height,
		Status:    entities.TxSuccess,
		Type:      entities.TxTypeCall,
	}
}

type searchHit struct {
	ID     string                   `json:"_id"`
	Source entities.TransactionInfo `json:"_source"`
	Sort   []any                    `json:"sort"`
}

func writeHits(t *testing.T, w http.ResponseWriter, txs []entities.TransactionInfo) {
	hits := make([]searchHit, 0, len(txs))
	for _, tx := range txs {
		hits = append(hits, searchHit{ID: tx.Hash, Source: tx, Sort: []any{tx.Height, tx.Hash}})
	}
	response := map[string]any{"took": 3, "hits": map[string]any{"hits": hits}}
	require.NoError(t, json.NewEncoder(w).Encode(response))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient([]string{server.URL}, "transactions", time.Second, zap.NewNop().Sugar())
	require.NoError(t, err)
	return client
}

func TestClient_ReadTransactions(t *testing.T) {
	txs := []entities.TransactionInfo{
		testTransaction(t, "aa", 10),
		testTransaction(t, "bb", 11),
		testTransaction(t, "cc", 12),
	}

	var queries []rangeQuery
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/_search", r.URL.Path)
		var query rangeQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		queries = append(queries, query)

		if len(query.SearchAfter) == 0 {
			writeHits(t, w, txs[:2])
			return
		}
		writeHits(t, w, txs[2:])
	})
	client.pageSize = 2

	got, err := client.ReadTransactions(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range txs {
		require.Equal(t, txs[i].Hash, got[i].Hash)
		require.Equal(t, txs[i].Height, got[i].Height)
		require.Equal(t, txs[i].From, got[i].From)
		require.Zero(t, txs[i].Value.Cmp(got[i].Value))
	}

	require.Len(t, queries, 2)
	require.Equal(t, []any{float64(11), "bb"}, queries[1].SearchAfter)
	require.Equal(t, 2, queries[0].Size)
}

func TestClient_ReadTransactions_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeHits(t, w, nil)
	})

	got, err := client.ReadTransactions(context.Background(), 1, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestClient_LatestHeight(t *testing.T) {
	testData := map[string]struct {
		response string
		expected uint64
	}{
		"populated index": {response: `{"took":1,"hits":{"hits":[]},"aggregations":{"max_height":{"value":4242.0}}}`, expected: 4242},
		"empty index":     {response: `{"took":1,"hits":{"hits":[]},"aggregations":{"max_height":{"value":null}}}`, expected: 0},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(td.response))
			})

			got, err := client.LatestHeight(context.Background())
			require.NoError(t, err)
			require.Equal(t, td.expected, got)
		})
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"parsing_exception","reason":"unknown query"}}`))
	})

	_, err := client.ReadTransactions(context.Background(), 1, 2)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "parsing_exception: unknown query"), err.Error())
}

func TestClient_IndexTransactions(t *testing.T) {
	var lines []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_bulk", r.URL.Path)
		buf := new(bytes.Buffer)
		_, err := buf.ReadFrom(r.Body)
		require.NoError(t, err)
		lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
		_, _ = w.Write([]byte(`{"took":1,"errors":false,"items":[{},{}]}`))
	})

	err := client.IndexTransactions(context.Background(), []entities.TransactionInfo{
		testTransaction(t, "aa", 10),
		testTransaction(t, "bb", 11),
	})
	require.NoError(t, err)
	require.Len(t, lines, 4)
	require.Equal(t, `{ "index": { "_index": "transactions", "_id": "aa" } }`, lines[0])

	var tx entities.TransactionInfo
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &tx))
	require.Equal(t, uint64(11), tx.Height)
}
