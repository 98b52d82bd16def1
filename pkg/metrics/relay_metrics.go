// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import "github.com/prometheus/client_golang/prometheus"

const relayMetricSubsystem = "relay"

var (
	RelaySessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: relaychatNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "sessions_active",
		Help:      "当前已注册的对端会话数量",
	})

	RelaySessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: relaychatNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "sessions_total",
		Help:      "累计接受的对端连接数量",
	})

	RelayMessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: relaychatNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "messages_received_total",
		Help:      "中继收到的消息行数",
	})

	RelayMessageBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: relaychatNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "message_bytes",
		Help:      "中继收到的单行消息大小（字节）",
		Buckets:   lineSizeBuckets,
	})

	RelayBroadcastDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: relaychatNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "broadcast_deliveries_total",
		Help:      "广播成功写出到对端的消息数",
	})

	RelaySendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: relaychatNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "send_failures_total",
		Help:      "广播时写对端失败的次数",
	})

	RelayErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: relaychatNamespace,
		Subsystem: relayMetricSubsystem,
		Name:      "errors_total",
		Help:      "中继按阶段统计的错误次数",
	}, []string{stageLabelName})
)

func registerRelayMetrics(r prometheus.Registerer) {
	r.MustRegister(RelaySessionsActive)
	r.MustRegister(RelaySessionsTotal)
	r.MustRegister(RelayMessagesReceived)
	r.MustRegister(RelayMessageBytes)
	r.MustRegister(RelayBroadcastDeliveries)
	r.MustRegister(RelaySendFailures)
	r.MustRegister(RelayErrors)
}
