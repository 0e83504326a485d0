package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
)

// codeUserRejected is the EIP-1193 error code for a declined signature prompt
const codeUserRejected = 4001

// RemoteSigner asks a JSON-RPC node or wallet to sign with personal_sign
type RemoteSigner struct {
	client     *gethrpc.Client
	address    common.Address
	walletType core.WalletType
}

var _ ports.Signer = (*RemoteSigner)(nil)

// NewRemoteSigner wraps an RPC client for the given account
func NewRemoteSigner(client *gethrpc.Client, address common.Address, walletType core.WalletType) *RemoteSigner {
	return &RemoteSigner{
		client:     client,
		address:    address,
		walletType: walletType,
	}
}

// DialRemoteSigner connects to url and returns a signer for address
func DialRemoteSigner(ctx context.Context, url string, address common.Address, walletType core.WalletType) (*RemoteSigner, error) {
	client, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc provider: %w", err)
	}
	return NewRemoteSigner(client, address, walletType), nil
}

func (s *RemoteSigner) Address() common.Address {
	return s.address
}

func (s *RemoteSigner) WalletType() core.WalletType {
	return s.walletType
}

// SignMessage requests a personal_sign signature from the provider
func (s *RemoteSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	var sig hexutil.Bytes
	err := s.client.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(msg), s.address)
	if err != nil {
		var rpcErr gethrpc.Error
		if errors.As(err, &rpcErr) {
			if rpcErr.ErrorCode() == codeUserRejected {
				return nil, fmt.Errorf("%w: %v", core.ErrSignatureRejected, err)
			}
			return nil, fmt.Errorf("%w: provider error: %v", core.ErrSignatureRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	return sig, nil
}

// Close closes the underlying RPC connection
func (s *RemoteSigner) Close() {
	s.client.Close()
}

// VerifyChainID checks that the node at url serves the expected chain
func VerifyChainID(ctx context.Context, url string, want int64) error {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to dial rpc provider: %w", err)
	}
	defer client.Close()

	got, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to query chain id: %w", err)
	}
	if got.Cmp(big.NewInt(want)) != 0 {
		return fmt.Errorf("rpc provider serves chain %s, expected %d", got, want)
	}
	return nil
}
