package mocks

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/mock"

	"github.com/Silent-Builder-x/ArcDNA/types/network"
)

type MockChainClient struct {
	mock.Mock
}

var _ network.ChainClient = (*MockChainClient)(nil)

// GetAccountData implements network.ChainClient.
func (m *MockChainClient) GetAccountData(
	ctx context.Context,
	address solana.PublicKey,
) ([]byte, error) {
	args := m.Called(ctx, address)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// GetBalance implements network.ChainClient.
func (m *MockChainClient) GetBalance(
	ctx context.Context,
	address solana.PublicKey,
) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

// SendInstructions implements network.ChainClient.
func (m *MockChainClient) SendInstructions(
	ctx context.Context,
	payer solana.PrivateKey,
	instructions ...solana.Instruction,
) (solana.Signature, error) {
	args := m.Called(ctx, payer, instructions)
	return args.Get(0).(solana.Signature), args.Error(1)
}

// GetTransactionAccounts implements network.ChainClient.
func (m *MockChainClient) GetTransactionAccounts(
	ctx context.Context,
	signature solana.Signature,
) ([]solana.PublicKey, error) {
	args := m.Called(ctx, signature)
	accounts, _ := args.Get(0).([]solana.PublicKey)
	return accounts, args.Error(1)
}

// SubscribeLogs implements network.ChainClient.
func (m *MockChainClient) SubscribeLogs(
	ctx context.Context,
	mentions solana.PublicKey,
) (network.LogSubscription, error) {
	args := m.Called(ctx, mentions)
	sub, _ := args.Get(0).(network.LogSubscription)
	return sub, args.Error(1)
}

// Close implements network.ChainClient.
func (m *MockChainClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
