package registry

// Service is the interface for every agent component with a lifecycle.
type Service interface {
	Start() error
	Stop() error
}

// Funcs adapts a pair of functions to Service. A nil function is a no-op.
type Funcs struct {
	StartFunc func() error
	StopFunc  func() error
}

// Start implements Service.
func (f Funcs) Start() error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc()
}

// Stop implements Service.
func (f Funcs) Stop() error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc()
}
