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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry 独立于全局默认注册表，避免与第三方库指标冲突
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		QueryDuration, QueryTotal,
		ToolDuration, ToolCallTotal,
		SearchOutcomeTotal, LLMCallDuration, LLMTokensTotal,
		RateLimitWaitSeconds, ActiveSessions,
	)
}

// QueryDuration 单轮问答耗时（秒）
var QueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "course_rag_query_duration_seconds",
		Help:    "单轮问答耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool_used"}, // true | false
)

// QueryTotal 问答总数（按结果）
var QueryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "course_rag_query_total",
		Help: "问答总数（按结果）",
	},
	[]string{"status"}, // ok | generation_error | timeout
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "course_rag_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolCallTotal 工具调用次数
var ToolCallTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "course_rag_tool_call_total",
		Help: "工具调用次数",
	},
	[]string{"tool", "outcome"}, // ok | error | unknown
)

// SearchOutcomeTotal 检索结果分类计数
var SearchOutcomeTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "course_rag_search_outcome_total",
		Help: "检索结果分类计数",
	},
	[]string{"outcome"}, // ok | course_not_found | no_content | error
)

// LLMCallDuration 模型调用耗时（秒）
var LLMCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "course_rag_llm_call_duration_seconds",
		Help:    "模型调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider", "phase"}, // phase: decide | final
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "course_rag_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"provider", "direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待时间
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "course_rag_rate_limit_wait_seconds",
		Help:    "LLM 限流等待时间（秒）",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
	},
	[]string{"provider"},
)

// ActiveSessions 内存中的会话数
var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "course_rag_active_sessions",
		Help: "内存中的会话数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
