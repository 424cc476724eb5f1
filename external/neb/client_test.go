package neb

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/stretchr/testify/require"
)

func testAddress(t *testing.T, addressType entities.AddressType, seed byte) entities.Address {
	t.Helper()
	a, err := entities.NewAddress(addressType, bytes.Repeat([]byte{seed}, 20))
	require.NoError(t, err)
	return a
}

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) *Client {
	mux := http.NewServeMux()
	for path, handler := range routes {
		mux.HandleFunc(path, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", time.Second)
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func TestClient_GetBalance(t *testing.T) {
	account := testAddress(t, entities.AccountAddress, 1)
	missing := testAddress(t, entities.AccountAddress, 2)

	client := newTestServer(t, map[string]http.HandlerFunc{
		"/v1/user/accountstate": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			var request accountStateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			if request.Address == missing.String() {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "account not found"})
				return
			}
			require.Equal(t, uint64(77), request.Height)
			writeResult(w, map[string]any{"balance": "1000000000000000000000", "nonce": "3", "type": 87})
		},
	})

	balance, err := client.GetBalance(context.Background(), account, 77)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000000", balance.String())

	_, err = client.GetBalance(context.Background(), missing, 77)
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestClient_GetChainStatus(t *testing.T) {
	client := newTestServer(t, map[string]http.HandlerFunc{
		"/v1/user/nebstate": func(w http.ResponseWriter, _ *http.Request) {
			writeResult(w, map[string]any{"chain_id": 100, "tail": "t", "lib": "libhash", "height": "5000"})
		},
		"/v1/user/getBlockByHash": func(w http.ResponseWriter, r *http.Request) {
			var request blockRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			require.Equal(t, "libhash", request.Hash)
			writeResult(w, map[string]any{"hash": "libhash", "height": "4980"})
		},
	})

	status, err := client.GetChainStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, entities.ChainStatus{ChainID: 100, TailHeight: 5000, LibHeight: 4980}, status)

	tail, err := client.TailHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(5000), tail)
}

func TestClient_Deployer(t *testing.T) {
	contract := testAddress(t, entities.ContractAddress, 3)
	deployer := testAddress(t, entities.AccountAddress, 4)

	client := newTestServer(t, map[string]http.HandlerFunc{
		"/v1/user/getTransactionByContract": func(w http.ResponseWriter, _ *http.Request) {
			writeResult(w, map[string]any{"from": deployer.String(), "to": contract.String(), "type": "deploy"})
		},
	})

	got, err := client.Deployer(context.Background(), contract)
	require.NoError(t, err)
	require.Equal(t, deployer, got)
}

type countingReader struct {
	balances  atomic.Int32
	deployers atomic.Int32
}

func (c *countingReader) GetBalance(_ context.Context, _ entities.Address, height uint64) (*big.Int, error) {
	c.balances.Add(1)
	return new(big.Int).SetUint64(height), nil
}

func (c *countingReader) Deployer(_ context.Context, contract entities.Address) (entities.Address, error) {
	c.deployers.Add(1)
	return contract, nil
}

func TestCachingReader(t *testing.T) {
	reader := &countingReader{}
	cache := NewCachingReader(reader, time.Minute, 100)
	account := testAddress(t, entities.AccountAddress, 1)

	for range 3 {
		balance, err := cache.GetBalance(context.Background(), account, 10)
		require.NoError(t, err)
		require.Equal(t, int64(10), balance.Int64())
	}
	balance, err := cache.GetBalance(context.Background(), account, 11)
	require.NoError(t, err)
	require.Equal(t, int64(11), balance.Int64())
	require.Equal(t, int32(2), reader.balances.Load())

	// callers may modify the returned value
	balance.SetInt64(0)
	again, err := cache.GetBalance(context.Background(), account, 11)
	require.NoError(t, err)
	require.Equal(t, int64(11), again.Int64())

	for range 2 {
		_, err := cache.Deployer(context.Background(), account)
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), reader.deployers.Load())
}

type blockingReader struct {
	countingReader
	started chan struct{}
	release chan struct{}
}

func (b *blockingReader) GetBalance(ctx context.Context, address entities.Address, height uint64) (*big.Int, error) {
	if height == 1 {
		close(b.started)
		<-b.release
	}
	return b.countingReader.GetBalance(ctx, address, height)
}

func TestCachingReader_ConcurrentMisses(t *testing.T) {
	reader := &blockingReader{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCachingReader(reader, time.Minute, 100)
	account := testAddress(t, entities.AccountAddress, 1)

	slow := make(chan *big.Int, 1)
	go func() {
		balance, err := cache.GetBalance(context.Background(), account, 1)
		if err != nil {
			balance = nil
		}
		slow <- balance
	}()
	<-reader.started

	// a miss on another key is served while the first read is in flight
	fast := make(chan *big.Int, 1)
	go func() {
		balance, _ := cache.GetBalance(context.Background(), account, 2)
		fast <- balance
	}()
	select {
	case balance := <-fast:
		require.Equal(t, int64(2), balance.Int64())
	case <-time.After(2 * time.Second):
		t.Fatal("read of another key waited for the pending one")
	}

	close(reader.release)
	balance := <-slow
	require.NotNil(t, balance)
	require.Equal(t, int64(1), balance.Int64())

	again, err := cache.GetBalance(context.Background(), account, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), again.Int64())
	require.Equal(t, int32(2), reader.balances.Load())
}
