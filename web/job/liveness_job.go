package job

import (
	"context"
	"sync"

	"x-sub/config"
	"x-sub/logger"
	"x-sub/web/service"
)

// LivenessJob 定期重算节点在线状态：更新在线节点数指标，状态翻转时发出通知。
// 在线判定本身是按时间戳惰性计算的，这个任务只做预热与告警
type LivenessJob struct {
	nodes    *service.NodeRegistry
	metrics  *service.Metrics
	notifier service.Notifier

	mu   sync.Mutex
	last map[int64]bool
}

func NewLivenessJob(nodes *service.NodeRegistry, metrics *service.Metrics, notifier service.Notifier) *LivenessJob {
	return &LivenessJob{
		nodes:    nodes,
		metrics:  metrics,
		notifier: notifier,
		last:     make(map[int64]bool),
	}
}

func (j *LivenessJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), config.NodeStopTimeout)
	defer cancel()

	servers, err := j.nodes.All(ctx)
	if err != nil {
		logger.Warning("LivenessJob: load nodes failed:", err)
		return
	}

	now := j.nodes.Now()
	j.mu.Lock()
	defer j.mu.Unlock()

	current := make(map[int64]bool, len(servers))
	live := 0
	for _, s := range servers {
		isLive := j.nodes.IsLive(s, now)
		current[s.Id] = isLive
		if isLive {
			live++
		}
		prev, seen := j.last[s.Id]
		// 首次运行只记录基线
		if seen && prev != isLive {
			j.notifier.NodeChanged(ctx, service.NodeTransition{NodeID: s.Id, Name: s.Name, Live: isLive, At: now})
		}
	}
	j.last = current
	j.metrics.LiveNodes.Set(float64(live))
}
