package mocks

import "github.com/stretchr/testify/mock"

// MockStorage is a mock implementation of the storage.Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Get(key string, v any) (bool, error) {
	args := m.Called(key, v)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) Set(key string, v any) error {
	args := m.Called(key, v)
	return args.Error(0)
}

func (m *MockStorage) Remove(key string) error {
	args := m.Called(key)
	return args.Error(0)
}
