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
	"sync"

	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/relaychat-go/pkg/log"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// Pool 是对 ants.Pool 的泛型封装，提交的任务以 Future 形式返回结果。
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建一个容量为 cap 的协程池；cap <= 0 表示不限容量。
//
// 说明：
//   - 长生命周期任务（例如连接读循环）必须提交到不限容量的池，
//     否则池满时会阻塞 accept 循环。
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	opt := &poolOption{name: "anonymous"}
	for _, o := range opts {
		o(opt)
	}
	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		panic(err)
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}
}

// Submit 提交一个任务，并返回对应的 Future。
// 若任务无法提交（例如池已释放），Future 会立即以错误完成。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		if pool.opt.preHandler != nil {
			pool.opt.preHandler()
		}
		res, err := method()
		if err != nil {
			future.err = err
		} else {
			future.value = res
		}
	})
	if err != nil {
		future.err = merr.WrapErrServiceInternal(err.Error(), "conc pool submit")
		close(future.ch)
	}

	return future
}

// Cap 返回协程池容量，不限容量时为 -1。
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Running 返回正在执行任务的 worker 数量。
func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

// Free 返回空闲 worker 数量。
func (pool *Pool[T]) Free() int {
	return pool.inner.Free()
}

// Release 释放协程池，之后的 Submit 均会失败。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}

var (
	defaultPool     *Pool[any]
	defaultPoolOnce sync.Once
)

func getDefaultPool() *Pool[any] {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool[any](-1, WithName("default"), WithConcealPanic(true))
		log.Debug("conc default pool initialized", zap.Int("cap", defaultPool.Cap()))
	})
	return defaultPool
}

// Go 在进程级默认协程池中执行 fn，并返回对应的 Future。
//
// 默认池不限容量，可安全用于长生命周期的循环任务。
func Go[T any](fn func() (T, error)) *Future[T] {
	future := newFuture[T]()
	inner := getDefaultPool().Submit(func() (any, error) {
		defer close(future.ch)
		future.value, future.err = fn()
		return nil, nil
	})
	// 提交失败时内部任务不会执行，需要在这里完成 future。
	if inner.Done() && inner.Err() != nil {
		select {
		case <-future.ch:
		default:
			future.err = inner.Err()
			close(future.ch)
		}
	}
	return future
}
