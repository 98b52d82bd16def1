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

const peerMetricSubsystem = "peer"

var (
	// PeerState 为客户端连接器当前状态：0 Disconnected，1 Connecting，2 Connected。
	PeerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: relaychatNamespace,
		Subsystem: peerMetricSubsystem,
		Name:      "state",
		Help:      "客户端连接器当前状态",
	})

	PeerConnectAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: relaychatNamespace,
		Subsystem: peerMetricSubsystem,
		Name:      "connect_attempts_total",
		Help:      "客户端发起连接的次数，按结果区分",
	}, []string{resultLabelName})

	PeerMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: relaychatNamespace,
		Subsystem: peerMetricSubsystem,
		Name:      "messages_total",
		Help:      "客户端收发的消息行数",
	}, []string{directionLabelName})

	PeerSendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: relaychatNamespace,
		Subsystem: peerMetricSubsystem,
		Name:      "send_failures_total",
		Help:      "客户端写连接失败的次数",
	})
)

func registerPeerMetrics(r prometheus.Registerer) {
	r.MustRegister(PeerState)
	r.MustRegister(PeerConnectAttempts)
	r.MustRegister(PeerMessages)
	r.MustRegister(PeerSendFailures)
}
