package job

import (
	"context"
	"fmt"
	"sync"

	"x-sub/logger"
	"x-sub/util/common"
)

// Manager 按注册顺序启动任务，按相反顺序停止
type Manager struct {
	mu      sync.Mutex
	jobs    []Job
	started []Job
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Register(j Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, j)
	logger.Debugf("[Jobs] registered %s", j.Name())
}

// StartAll 任一任务启动失败时，回滚已启动的任务并返回错误
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if err := j.Start(ctx); err != nil {
			logger.Errorf("[Jobs] start %s failed: %v", j.Name(), err)
			rollback := m.stopStarted()
			return common.Combine(fmt.Errorf("start job %s: %w", j.Name(), err), rollback)
		}
		m.started = append(m.started, j)
		logger.Infof("[Jobs] %s started", j.Name())
	}
	return nil
}

// StopAll 停止所有已启动的任务，返回合并后的停止错误
func (m *Manager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopStarted()
}

func (m *Manager) stopStarted() error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		j := m.started[i]
		if err := j.Stop(); err != nil {
			logger.Warningf("[Jobs] stop %s failed: %v", j.Name(), err)
			errs = append(errs, fmt.Errorf("stop job %s: %w", j.Name(), err))
			continue
		}
		logger.Infof("[Jobs] %s stopped", j.Name())
	}
	m.started = nil
	return common.Combine(errs...)
}

// Running 当前已启动的任务名，按启动顺序
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.started))
	for _, j := range m.started {
		names = append(names, j.Name())
	}
	return names
}
