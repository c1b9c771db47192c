package executor

import "sync"

// shared is the executor handed out to tests that want a warm pool without
// paying for startup in every test.
var shared struct {
	sync.Mutex
	exec *Executor
}

// GetTestExecutor returns the shared test executor, creating it with opts on
// first use. Later calls ignore opts.
func GetTestExecutor(opts ...ExecutorOption) (*Executor, error) {
	shared.Lock()
	defer shared.Unlock()

	if shared.exec == nil {
		exec, err := New(opts...)
		if err != nil {
			return nil, err
		}
		shared.exec = exec
	}
	return shared.exec, nil
}

// CloseTestExecutor closes the shared test executor. The next
// GetTestExecutor call starts a new one.
func CloseTestExecutor() error {
	shared.Lock()
	defer shared.Unlock()

	if shared.exec == nil {
		return nil
	}
	err := shared.exec.Close()
	shared.exec = nil
	return err
}
