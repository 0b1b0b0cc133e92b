package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockToken is a testify mock of mqtt.Token.
type MockToken struct {
	mock.Mock
}

// NewCompletedToken returns a token that has already finished with err.
func NewCompletedToken(err error) *MockToken {
	token := new(MockToken)
	token.On("Wait").Return(true).Maybe()
	token.On("WaitTimeout", mock.Anything).Return(true).Maybe()
	token.On("Completed").Return(true).Maybe()
	token.On("Error").Return(err).Maybe()
	return token
}

// NewStalledToken returns a token that never completes.
func NewStalledToken() *MockToken {
	token := new(MockToken)
	token.On("Wait").Return(false).Maybe()
	token.On("WaitTimeout", mock.Anything).Return(false).Maybe()
	token.On("Completed").Return(false).Maybe()
	token.On("Error").Return(nil).Maybe()
	return token
}

func (m *MockToken) Error() error {
	return m.Called().Error(0)
}

func (m *MockToken) Wait() bool {
	return m.Called().Bool(0)
}

// Done returns a closed channel once the token reports completion.
func (m *MockToken) Done() <-chan struct{} {
	done := make(chan struct{})
	if m.Completed() {
		close(done)
	}
	return done
}

func (m *MockToken) Completed() bool {
	return m.Called().Bool(0)
}

func (m *MockToken) WaitTimeout(timeout time.Duration) bool {
	return m.Called(timeout).Bool(0)
}
