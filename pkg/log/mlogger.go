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

package log

import (
	"sync"

	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
)

var _namedRateLimiters sync.Map

// MLogger 是 zap.Logger 的封装类型。
// 在原有 Logger 的基础上，增加了按分组限流的日志能力。
type MLogger struct {
	*zap.Logger
	rl RateLimiter
}

// With 返回携带额外字段的新实例，不影响原 Logger，限流分组会被继承。
func (l *MLogger) With(fields ...zap.Field) *MLogger {
	return &MLogger{
		Logger: l.Logger.With(fields...),
		rl:     l.rl,
	}
}

// WithRateGroup 返回绑定到指定限流分组的新实例。
// 相同 groupName 共享同一个限流器，再次调用会更新其参数。
func (l *MLogger) WithRateGroup(groupName string, creditPerSecond, maxBalance float64) *MLogger {
	rl := utils.NewRateLimiter(creditPerSecond, maxBalance)
	actual, loaded := _namedRateLimiters.LoadOrStore(groupName, rl)
	if loaded {
		rl = actual.(*utils.ReconfigurableRateLimiter)
		rl.Update(creditPerSecond, maxBalance)
	}
	return &MLogger{Logger: l.Logger, rl: rl}
}

func (l *MLogger) r() RateLimiter {
	if l.rl == nil {
		return R()
	}
	return l.rl
}

// RatedWarn 在限流通过时输出 Warn 日志，并返回 true；否则不输出日志并返回 false。
func (l *MLogger) RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	if l.r().CheckCredit(cost) {
		l.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
		return true
	}
	return false
}
