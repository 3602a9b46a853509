package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockCircuitRegistrar struct {
	mock.Mock
}

func (m *MockCircuitRegistrar) Register(
	ctx context.Context,
	label string,
) error {
	args := m.Called(ctx, label)
	return args.Error(0)
}
