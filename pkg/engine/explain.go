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
	"fmt"

	"github.com/xlab/treeprint"
)

// Explain renders a human-readable dump of which stage ran, with what
// mode and counts (no timings are recorded) — a debugging aid for the
// host environment, not part of the core contract.
func Explain(ctx *Context, res *GroupResult) string {
	tree := treeprint.New()
	tree.SetValue("gtools invocation")

	hash := tree.AddBranch("hash")
	hash.AddNode(fmt.Sprintf("mode: %s", ctx.Stats.HashMode))
	if res != nil && res.Fp != nil {
		hash.AddNode(fmt.Sprintf("estimatedGroups: %d", res.Fp.EstimatedGroups))
	}

	sort := tree.AddBranch("sort")
	sort.AddNode(fmt.Sprintf("mode: %s", ctx.Stats.SortMode))

	panel := tree.AddBranch("panel-setup")
	panel.AddNode(fmt.Sprintf("collisions: %d", ctx.Stats.Collisions))
	if res != nil {
		panel.AddNode(fmt.Sprintf("groups: %d", res.J))
	}

	if res != nil {
		agg := tree.AddBranch("aggregate")
		for name, results := range res.Outputs {
			col := agg.AddBranch(name)
			for _, r := range results {
				col.AddNode(fmt.Sprintf("func kind=%d pctile=%v", r.Func.Kind, r.Func.Pctile))
			}
		}
	}

	return tree.String()
}
