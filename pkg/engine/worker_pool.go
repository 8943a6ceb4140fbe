// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"github.com/petermattis/goid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gtools-go/gtools/pkg/util"
)

// forkJoin runs n independent tasks to completion, one goroutine each
// with at most ctx.Opts.Workers running at once, and returns the first
// error (if any) only after every task has finished — spec.md §9's
// "small bounded worker-pool abstraction... fork_n / join_all with
// panic-safe join". A panicking task is recovered and reported as an
// error rather than crashing the process.
func forkJoin(ctx *Context, n int, task func(worker int) error) error {
	var g errgroup.Group
	if ctx.Opts.Workers > 0 {
		g.SetLimit(ctx.Opts.Workers)
	}
	for w := 0; w < n; w++ {
		worker := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = util.ConvertPanicError(r)
				}
			}()
			if ctx.Opts.Verbose {
				ctx.Log.Debug("worker start",
					zap.Int("worker", worker), zap.Int64("goid", goid.Get()))
			}
			return task(worker)
		})
	}
	return g.Wait()
}
