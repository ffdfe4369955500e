package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics 业务指标，使用独立 Registry 便于测试中多实例共存
type Metrics struct {
	Registry *prometheus.Registry

	Reports       *prometheus.CounterVec // result: ok|duplicate|invalid|error
	ReportEntries *prometheus.CounterVec // result: applied|dropped
	Transitions   *prometheus.CounterVec // to: 状态名或 reset
	Renders       *prometheus.CounterVec // result: hit|miss|denied
	Redemptions   *prometheus.CounterVec // result: ok|not_found|expired|exhausted|plan
	Commissions   prometheus.Counter
	Probes        *prometheus.CounterVec // result: ok|fail|unknown
	LiveNodes     prometheus.Gauge
	CacheEntries  prometheus.GaugeFunc
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xsub", Name: "traffic_reports_total", Help: "Traffic reports by result.",
		}, []string{"result"}),
		ReportEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xsub", Name: "traffic_report_entries_total", Help: "Traffic report entries by result.",
		}, []string{"result"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xsub", Name: "quota_transitions_total", Help: "Quota state transitions.",
		}, []string{"to"}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xsub", Name: "subscription_renders_total", Help: "Subscription builds by result.",
		}, []string{"result"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xsub", Name: "coupon_redemptions_total", Help: "Coupon redemptions by result.",
		}, []string{"result"}),
		Commissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xsub", Name: "commission_credits_total", Help: "Commission log rows written.",
		}),
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xsub", Name: "node_probes_total", Help: "Node connectivity probes by result.",
		}, []string{"result"}),
		LiveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xsub", Name: "live_nodes", Help: "Nodes considered live at the last liveness check.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Reports, m.ReportEntries, m.Transitions, m.Renders,
		m.Redemptions, m.Commissions, m.Probes, m.LiveNodes,
	)
	return m
}

// TrackCache 注册缓存条目数指标
func (m *Metrics) TrackCache(c *SubscriptionCache) {
	if m.CacheEntries != nil {
		return
	}
	m.CacheEntries = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "xsub", Name: "subscription_cache_entries", Help: "Entries in the subscription cache.",
	}, func() float64 { return float64(c.Len()) })
	m.Registry.MustRegister(m.CacheEntries)
}
