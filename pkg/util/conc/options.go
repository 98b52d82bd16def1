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

package conc

import (
	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/relaychat-go/pkg/log"
)

type poolOption struct {
	name string
	// concealPanic 为 true 时任务 panic 只记录日志。
	concealPanic bool
	panicHandler func(any)
	// preHandler 在每个任务执行前调用。
	preHandler func()
}

func (opt *poolOption) antsOptions() []ants.Option {
	handler := opt.panicHandler
	if handler == nil {
		handler = func(v any) {
			log.Error("conc pool task panicked", zap.String("pool", opt.name), zap.Any("panic", v))
			if !opt.concealPanic {
				panic(v)
			}
		}
	}
	return []ants.Option{ants.WithPanicHandler(handler)}
}

// PoolOption 用于配置协程池。
type PoolOption func(opt *poolOption)

// WithName 设置协程池名称，仅用于日志。
func WithName(name string) PoolOption {
	return func(opt *poolOption) {
		opt.name = name
	}
}

// WithConcealPanic 为 true 时，任务 panic 只记录日志，不再向上抛出。
func WithConcealPanic(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.concealPanic = v
	}
}

func WithPanicHandler(fn func(any)) PoolOption {
	return func(opt *poolOption) {
		opt.panicHandler = fn
	}
}

func WithPreHandler(fn func()) PoolOption {
	return func(opt *poolOption) {
		opt.preHandler = fn
	}
}
