// Package metrics 提供监控指标收集
//
// 基于 prometheus client_golang，统计：
//   - Runtime 任务（已派发 / 运行中）
//   - 网络操作结果（按操作名与成功/失败）
//   - 结果投递（已投递 / 因宿主对象失效被丢弃）
//   - 流量（按方向与 ALPN）
//   - Gossip 帧（按方向）
//
// 所有方法对 nil *Metrics 安全，组件可以不注入指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bridge"

// 结果标签值
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics 指标集合
type Metrics struct {
	tasksSpawned prometheus.Counter
	tasksActive  prometheus.Gauge
	operations   *prometheus.CounterVec
	delivered    prometheus.Counter
	dropped      prometheus.Counter
	streamBytes  *prometheus.CounterVec
	gossipFrames *prometheus.CounterVec
}

// New 创建指标集合并注册到 reg
//
// reg 为 nil 时只创建不注册（测试场景）。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "tasks_spawned_total",
			Help:      "Number of background tasks spawned on the runtime.",
		}),
		tasksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "tasks_active",
			Help:      "Number of background tasks currently running.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Network operations by name and outcome.",
		}, []string{"op", "result"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "posted_total",
			Help:      "Results posted to the host dispatch queue.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "handle_expired_total",
			Help:      "Results dropped because the host object was freed.",
		}),
		streamBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Bytes moved through stream halves.",
		}, []string{"direction", "alpn"}),
		gossipFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gossip",
			Name:      "frames_total",
			Help:      "Gossip frames sent, received and suppressed as duplicates.",
		}, []string{"direction"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.tasksSpawned,
			m.tasksActive,
			m.operations,
			m.delivered,
			m.dropped,
			m.streamBytes,
			m.gossipFrames,
		)
	}
	return m
}

// TaskStarted 记录任务开始
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksSpawned.Inc()
	m.tasksActive.Inc()
}

// TaskFinished 记录任务结束
func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.tasksActive.Dec()
}

// Operation 记录一次网络操作结果
func (m *Metrics) Operation(op string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// Delivered 记录一次成功入队的结果投递
func (m *Metrics) Delivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

// HandleExpired 记录一次因宿主对象失效而丢弃的投递
func (m *Metrics) HandleExpired() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// StreamBytes 记录流量
//
// direction 为 "in" 或 "out"。
func (m *Metrics) StreamBytes(direction, alpn string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.streamBytes.WithLabelValues(direction, alpn).Add(float64(n))
}

// GossipFrame 记录 Gossip 帧
//
// direction 为 "in"、"out" 或 "duplicate"（已见过而被丢弃的入站数据帧）。
func (m *Metrics) GossipFrame(direction string) {
	if m == nil {
		return
	}
	m.gossipFrames.WithLabelValues(direction).Inc()
}
