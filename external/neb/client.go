package neb

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
)

// Client reads chain state from a node's JSON HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (c *Client) call(ctx context.Context, method, path string, request, result any) error {
	var body io.Reader
	if request != nil {
		data, err := json.Marshal(request)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling [%s]", path)
	}
	defer res.Body.Close()

	var response apiResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return errors.Wrapf(err, "decoding [%s] response with status [%d]", path, res.StatusCode)
	}
	if response.Error != "" {
		if strings.Contains(response.Error, "not found") {
			return errors.Wrapf(entities.ErrNotFound, "[%s] %s", path, response.Error)
		}
		return errors.Errorf("[%s] %s", path, response.Error)
	}
	if res.StatusCode != http.StatusOK {
		return errors.Errorf("[%s] unexpected status [%d]", path, res.StatusCode)
	}

	if err := json.Unmarshal(response.Result, result); err != nil {
		return errors.Wrapf(err, "decoding [%s] result", path)
	}
	return nil
}

type accountStateRequest struct {
	Address string `json:"address"`
	Height  uint64 `json:"height"`
}

type accountStateResult struct {
	Balance string `json:"balance"`
}

func (c *Client) GetBalance(ctx context.Context, address entities.Address, height uint64) (*big.Int, error) {
	var result accountStateResult
	err := c.call(ctx, http.MethodPost, "/v1/user/accountstate", accountStateRequest{Address: address.String(), Height: height}, &result)
	if err != nil {
		return nil, errors.Wrapf(err, "getting account state of [%s] at [%d]", address, height)
	}

	balance, err := entities.ParseWei(result.Balance)
	if err != nil {
		return nil, errors.Wrapf(err, "balance of [%s]", address)
	}
	return balance, nil
}

type nebStateResult struct {
	ChainID uint32 `json:"chain_id"`
	Lib     string `json:"lib"`
	Height  string `json:"height"`
}

type blockRequest struct {
	Hash                string `json:"hash"`
	FullFillTransaction bool   `json:"full_fill_transaction"`
}

type blockResult struct {
	Height string `json:"height"`
}

// GetChainStatus reads the tail height and resolves the height of the last
// irreversible block.
func (c *Client) GetChainStatus(ctx context.Context) (entities.ChainStatus, error) {
	var state nebStateResult
	if err := c.call(ctx, http.MethodGet, "/v1/user/nebstate", nil, &state); err != nil {
		return entities.ChainStatus{}, errors.Wrap(err, "getting neb state")
	}
	tail, err := strconv.ParseUint(state.Height, 10, 64)
	if err != nil {
		return entities.ChainStatus{}, errors.Wrapf(entities.ErrMalformedRecord, "tail height [%s]", state.Height)
	}

	var lib blockResult
	if err := c.call(ctx, http.MethodPost, "/v1/user/getBlockByHash", blockRequest{Hash: state.Lib}, &lib); err != nil {
		return entities.ChainStatus{}, errors.Wrapf(err, "getting lib block [%s]", state.Lib)
	}
	libHeight, err := strconv.ParseUint(lib.Height, 10, 64)
	if err != nil {
		return entities.ChainStatus{}, errors.Wrapf(entities.ErrMalformedRecord, "lib height [%s]", lib.Height)
	}

	return entities.ChainStatus{ChainID: state.ChainID, TailHeight: tail, LibHeight: libHeight}, nil
}

func (c *Client) TailHeight(ctx context.Context) (uint64, error) {
	var state nebStateResult
	if err := c.call(ctx, http.MethodGet, "/v1/user/nebstate", nil, &state); err != nil {
		return 0, errors.Wrap(err, "getting neb state")
	}
	tail, err := strconv.ParseUint(state.Height, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(entities.ErrMalformedRecord, "tail height [%s]", state.Height)
	}
	return tail, nil
}

type contractRequest struct {
	Address string `json:"address"`
}

type contractTransactionResult struct {
	From string `json:"from"`
}

// Deployer returns the sender of the transaction that deployed contract.
func (c *Client) Deployer(ctx context.Context, contract entities.Address) (entities.Address, error) {
	var result contractTransactionResult
	err := c.call(ctx, http.MethodPost, "/v1/user/getTransactionByContract", contractRequest{Address: contract.String()}, &result)
	if err != nil {
		return entities.Address{}, errors.Wrapf(err, "getting deploy transaction of [%s]", contract)
	}

	deployer, err := entities.ParseAddress(result.From)
	if err != nil {
		return entities.Address{}, errors.Wrapf(err, "deployer of [%s]", contract)
	}
	return deployer, nil
}
