package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"x-sub/logger"
)

type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() Status
}

// Service Web 与订阅服务器的启停接口
type Service interface {
	Start() error
	Stop() error
}

// serviceComponent 把无 ctx 的 Start/Stop 适配为 Component
type serviceComponent struct {
	name string
	svc  Service

	mu     sync.Mutex
	status Status
}

func NewServiceComponent(name string, svc Service) Component {
	return &serviceComponent{name: name, svc: svc}
}

func (c *serviceComponent) Name() string { return c.name }

func (c *serviceComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusRunning {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.status = StatusStarting
	if err := c.svc.Start(); err != nil {
		c.status = StatusStopped
		return fmt.Errorf("start %s: %w", c.name, err)
	}
	c.status = StatusRunning
	return nil
}

func (c *serviceComponent) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusStopped {
		return nil
	}
	c.status = StatusStopping
	err := c.svc.Stop()
	c.status = StatusStopped
	return err
}

func (c *serviceComponent) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

type LifecycleManager struct {
	mu         sync.Mutex
	components []Component
}

func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Component, 0),
	}
}

func (m *LifecycleManager) Register(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, c)
	logger.Infof("[Lifecycle] Registered component: %s", c.Name())
}

func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.components {
		logger.Infof("[Lifecycle] Starting component: %s", c.Name())
		if err := c.Start(ctx); err != nil {
			logger.Errorf("[Lifecycle] Failed to start component %s: %v", c.Name(), err)
			// 回滚已启动的组件
			for j := i - 1; j >= 0; j-- {
				_ = m.components[j].Stop(ctx)
			}
			return err
		}
	}
	return nil
}

// Reset 清空已注册组件，用于重启时重新装配
func (m *LifecycleManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = m.components[:0]
}

func (m *LifecycleManager) StopAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stop in reverse order
	for i := len(m.components) - 1; i >= 0; i-- {
		c := m.components[i]
		logger.Infof("[Lifecycle] Stopping component: %s", c.Name())

		stopDone := make(chan error, 1)
		go func() {
			stopDone <- c.Stop(ctx)
		}()

		select {
		case err := <-stopDone:
			if err != nil {
				logger.Errorf("[Lifecycle] Error stopping component %s: %v", c.Name(), err)
			}
		case <-ctx.Done():
			logger.Errorf("[Lifecycle] Timeout stopping component %s", c.Name())
		}
	}
}
