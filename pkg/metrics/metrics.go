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

import (
	// #nosec
	_ "net/http/pprof"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// relaychatNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	relaychatNamespace = "relaychat"

	// 以下为当前使用的通用标签名。
	stageLabelName     = "stage"
	directionLabelName = "direction"
	resultLabelName    = "result"
	sinkLabelName      = "sink"
)

// 标签取值。
const (
	DirectionIn  = "in"
	DirectionOut = "out"

	ResultSuccess = "success"
	ResultRefused = "refused"
	ResultFailed  = "failed"
)

var (
	// lineSizeBuckets 为单行消息大小的桶划分，单位为字节。
	lineSizeBuckets = prometheus.ExponentialBuckets(16, 4, 8)

	// EventsDropped 统计因 Sink 未设置或队列已满而被丢弃的事件数。
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: relaychatNamespace,
			Subsystem: "event",
			Name:      "dropped_total",
			Help:      "被丢弃的通知事件数量",
		}, []string{sinkLabelName})

	metricRegisterer prometheus.Registerer
	registerOnce     sync.Once
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只有第一次生效。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(EventsDropped)
		registerRelayMetrics(r)
		registerPeerMetrics(r)
		metricRegisterer = r
	})
}
