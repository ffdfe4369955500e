package job

import (
	"fmt"

	"x-sub/logger"

	cron "github.com/robfig/cron/v3"
)

// Scheduler 以 Job 生命周期包装 cron，任务 panic 经 cron.Recover 捕获
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(l cron.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// AddJob 注册定时任务，spec 为空时跳过
func (s *Scheduler) AddJob(spec string, job cron.Job) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %T at %q: %w", job, spec, err)
	}
	logger.Infof("Scheduled %T at %s", job, spec)
	return nil
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Name() string {
	return "Scheduler"
}

func (s *Scheduler) Start() error {
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() error {
	<-s.cron.Stop().Done()
	return nil
}
