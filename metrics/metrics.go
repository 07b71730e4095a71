// Package metrics provides Prometheus metrics for the order collector
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CancelOutcomes 撤单结果计数，source=local|unknown|single
	CancelOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_cancel_outcomes_total",
		Help: "撤单结果数量",
	}, []string{"source", "outcome"})

	// Reports 每次清理操作的结果
	Reports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_reports_total",
		Help: "清理操作次数",
	}, []string{"operation", "result"})

	// Passes 每次清理实际执行的轮数
	Passes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_passes",
		Help:    "单次清理执行的轮数",
		Buckets: []float64{1, 2, 3, 5, 8, 10},
	}, []string{"operation"})

	// UnknownEstimate 最近一次未知订单数量估计（可能为负）
	UnknownEstimate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_unknown_orders_estimate",
		Help: "交易所活跃订单数减去本地非终态记录数",
	}, []string{"pair"})

	OpenOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_open_orders",
		Help: "本地非终态订单数量",
	}, []string{"pair", "purpose", "side"})

	OpenNotional = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_open_notional",
		Help: "本地非终态订单名义金额（买单计价币，卖单基础币）",
	}, []string{"pair", "purpose", "side"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_gateway_requests_total",
		Help: "网关请求数量",
	}, []string{"action"})

	GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_gateway_errors_total",
		Help: "网关错误数量",
	}, []string{"action"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_gateway_latency_seconds",
		Help:    "网关请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	Sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_sweeps_total",
		Help: "定时清理次数",
	}, []string{"pair", "result"})
)

// RecordCancel 记录一次撤单结果。
func RecordCancel(source, outcome string) {
	CancelOutcomes.WithLabelValues(source, outcome).Inc()
}

// RecordReport 记录一次清理操作及其执行轮数。
func RecordReport(operation string, failed bool, passes int) {
	Reports.WithLabelValues(operation, resultLabel(failed)).Inc()
	if passes > 0 {
		Passes.WithLabelValues(operation).Observe(float64(passes))
	}
}

func UpdateUnknownEstimate(pair string, estimate int) {
	UnknownEstimate.WithLabelValues(pair).Set(float64(estimate))
}

// UpdateOpenOrders 更新某用途的挂单数量与名义金额。
func UpdateOpenOrders(pair, purpose string, buyCount, sellCount int, buyQuote, sellBase float64) {
	OpenOrders.WithLabelValues(pair, purpose, "buy").Set(float64(buyCount))
	OpenOrders.WithLabelValues(pair, purpose, "sell").Set(float64(sellCount))
	OpenNotional.WithLabelValues(pair, purpose, "buy").Set(buyQuote)
	OpenNotional.WithLabelValues(pair, purpose, "sell").Set(sellBase)
}

// ObserveGatewayCall 记录一次网关调用。
func ObserveGatewayCall(action string, seconds float64, err error) {
	GatewayRequests.WithLabelValues(action).Inc()
	GatewayLatency.WithLabelValues(action).Observe(seconds)
	if err != nil {
		GatewayErrors.WithLabelValues(action).Inc()
	}
}

func RecordSweep(pair string, failed bool) {
	Sweeps.WithLabelValues(pair, resultLabel(failed)).Inc()
}

func resultLabel(failed bool) string {
	if failed {
		return "failure"
	}
	return "success"
}

// Handler 返回 /metrics 处理器。
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
