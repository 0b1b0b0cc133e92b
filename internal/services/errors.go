package services

import (
	"errors"

	"github.com/benmeehan/keepalive-agent/internal/constants"
)

// Heartbeat cycle failures. They are recorded in the heartbeat log and never
// returned from Start.
var (
	ErrConnectivity           = errors.New("network not connected")
	ErrTransport              = errors.New("heartbeat transport failed")
	ErrMalformedResponse      = errors.New("heartbeat response missing or malformed")
	ErrServerRejected         = errors.New("heartbeat rejected by server")
	ErrAuthenticationRequired = errors.New("user not authenticated")
)

// BridgeError is returned by KeepAliveBridge operations.
type BridgeError struct {
	Code    string
	Message string
}

func (e *BridgeError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches any BridgeError with the same code.
func (e *BridgeError) Is(target error) bool {
	var t *BridgeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newBridgeError(code, message string) *BridgeError {
	return &BridgeError{Code: code, Message: message}
}

// Sentinels for errors.Is on bridge error codes.
var (
	ErrPlatformNotSupported = &BridgeError{Code: constants.CodePlatformNotSupported}
	ErrPluginMissing        = &BridgeError{Code: constants.CodePluginMissing}
	ErrNotInitialized       = &BridgeError{Code: constants.CodeNotInitialized}
	ErrAlreadyInitialized   = &BridgeError{Code: constants.CodeAlreadyInitialized}
	ErrModuleNotResolved    = &BridgeError{Code: constants.CodeModuleNotResolved}
	ErrMethodMissing        = &BridgeError{Code: constants.CodeMethodMissing}
	ErrNativeFailure        = &BridgeError{Code: constants.CodeNativeFailure}
)
