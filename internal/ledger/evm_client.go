package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
)

// Minimal ERC-20 ABI; balanceOf covers token balances and the position
// reads on staking/vault/NFT contracts alike.
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	balanceOfID     []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		method, ok := parsedERC20ABI.Methods["balanceOf"]
		if !ok {
			panic("balanceOf method not found in parsed ERC20 ABI")
		}
		balanceOfID = method.ID
	})
}

var _ port.LedgerClient = (*EVMClient)(nil)

// EVMClient implements the ledger query capability for one EVM-compatible
// network. Token balances go out as one JSON-RPC batch per call; a shared
// rate limiter keeps the node's request budget intact across concurrent
// collectors.
type EVMClient struct {
	ethClient      *ethclient.Client
	netDef         entity.NetworkDefinition
	limiter        *rate.Limiter
	rpcCallTimeout time.Duration
}

// NewEVMClient dials the network's primary RPC URL, falling back through
// the configured alternates.
func NewEVMClient(netDef entity.NetworkDefinition, connectTimeout, rpcCallTimeout time.Duration, limiter *rate.Limiter) (*EVMClient, error) {
	initParsedERC20ABI()

	rpcURLs := append([]string{netDef.PrimaryRPCURL}, netDef.FallbackRPCURLs...)
	var lastErr error
	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()

		if err == nil {
			return &EVMClient{
				ethClient:      client,
				netDef:         netDef,
				limiter:        limiter,
				rpcCallTimeout: rpcCallTimeout,
			}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

func (c *EVMClient) GetNativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	balance, err := c.ethClient.BalanceAt(callCtx, common.HexToAddress(owner), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance for %s on %s: %w", owner, c.netDef.Name, err)
	}
	return balance, nil
}

func (c *EVMClient) GetTokenBalances(ctx context.Context, owner string, tokenAddresses []string) ([]entity.TokenBalance, error) {
	if len(tokenAddresses) == 0 {
		return []entity.TokenBalance{}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ownerAddr := common.HexToAddress(owner)
	callData := append(append([]byte{}, balanceOfID...), common.LeftPadBytes(ownerAddr.Bytes(), 32)...)

	batchElems := make([]rpc.BatchElem, len(tokenAddresses))
	for i, tokenAddr := range tokenAddresses {
		batchElems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{
					"to":   common.HexToAddress(tokenAddr),
					"data": hexutil.Bytes(callData),
				},
				"latest",
			},
			Result: new(hexutil.Bytes),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	if err := c.ethClient.Client().BatchCallContext(callCtx, batchElems); err != nil {
		return nil, fmt.Errorf("RPC batch call failed on %s: %w", c.netDef.Name, err)
	}

	balances := make([]entity.TokenBalance, 0, len(tokenAddresses))
	for i, elem := range batchElems {
		if elem.Error != nil {
			// A single bad token contract does not fail the whole batch.
			continue
		}
		raw, ok := elem.Result.(*hexutil.Bytes)
		if !ok || raw == nil {
			continue
		}
		amount, err := unpackBalance(*raw)
		if err != nil {
			continue
		}
		balances = append(balances, entity.TokenBalance{
			TokenAddress: tokenAddresses[i],
			Amount:       amount,
		})
	}
	return balances, nil
}

func (c *EVMClient) GetContractPosition(ctx context.Context, owner string, contract string) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ownerAddr := common.HexToAddress(owner)
	callData := append(append([]byte{}, balanceOfID...), common.LeftPadBytes(ownerAddr.Bytes(), 32)...)

	callCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	var raw hexutil.Bytes
	err := c.ethClient.Client().CallContext(callCtx, &raw, "eth_call",
		map[string]interface{}{
			"to":   common.HexToAddress(contract),
			"data": hexutil.Bytes(callData),
		},
		"latest")
	if err != nil {
		return nil, fmt.Errorf("failed to read position on %s from contract %s: %w", c.netDef.Name, contract, err)
	}
	return unpackBalance(raw)
}

func unpackBalance(raw []byte) (*big.Int, error) {
	if len(raw) == 0 {
		return big.NewInt(0), nil
	}
	unpacked, err := parsedERC20ABI.Unpack("balanceOf", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("balanceOf unpack returned no data")
	}
	amount, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", unpacked[0])
	}
	return amount, nil
}
