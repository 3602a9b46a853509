package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Silent-Builder-x/ArcDNA/types/events"
)

type MockEventDistributor struct {
	mock.Mock
}

var _ events.EventDistributor = (*MockEventDistributor)(nil)

func (m *MockEventDistributor) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventDistributor) Stop() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockEventDistributor) Subscribe(
	id string,
) <-chan events.ProgramEvent {
	args := m.Called(id)
	return args.Get(0).(<-chan events.ProgramEvent)
}

func (m *MockEventDistributor) Unsubscribe(id string) {
	m.Called(id)
}
