// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

// State 单轮问答所处阶段
type State string

const (
	StateBuildingPrompt        State = "building_prompt"
	StateAwaitingDecision      State = "awaiting_model_decision"
	StateToolExecutionPending  State = "tool_execution_pending"
	StateAwaitingFinalResponse State = "awaiting_final_model_call"
	StateDone                  State = "done"
)

// Phase 模型调用阶段，用于指标与错误
type Phase string

const (
	// PhaseDecide 第一次调用，提供工具
	PhaseDecide Phase = "decide"
	// PhaseFinal 工具执行后的第二次调用，不提供工具
	PhaseFinal Phase = "final"
)

// transitions 合法的阶段迁移；第二次调用之后只能结束，不会再回到工具执行
var transitions = map[State][]State{
	StateBuildingPrompt:        {StateAwaitingDecision},
	StateAwaitingDecision:      {StateToolExecutionPending, StateDone},
	StateToolExecutionPending:  {StateAwaitingFinalResponse},
	StateAwaitingFinalResponse: {StateDone},
}

// CanTransition 判断 from -> to 是否合法
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
