package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"soluxe-backend/internal/models"
)

const lamportsPerSol = 1_000_000_000

// ChainClient looks up the on-chain balance of a wallet. Lookups are
// best-effort: callers surface a nil balance on failure and never block the
// parent operation on the RPC.
type ChainClient interface {
	GetBalance(ctx context.Context, walletAddress string) (float64, error)
}

// SolanaClient queries a Solana JSON-RPC endpoint.
type SolanaClient struct {
	rpcClient *rpc.Client
	endpoint  string
	timeout   time.Duration
}

func NewSolanaClient(endpoint string) *SolanaClient {
	return &SolanaClient{
		rpcClient: rpc.New(endpoint),
		endpoint:  endpoint,
		timeout:   5 * time.Second,
	}
}

// GetBalance returns the wallet's balance in SOL.
func (c *SolanaClient) GetBalance(ctx context.Context, walletAddress string) (float64, error) {
	pubKey, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet address: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.rpcClient.GetBalance(ctx, pubKey, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("%w: getBalance: %v", models.ErrUpstreamUnavailable, err)
	}

	return float64(out.Value) / lamportsPerSol, nil
}
