package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheus_ContainsCounters(t *testing.T) {
	SearchOutcomeTotal.WithLabelValues("course_not_found").Inc()
	ToolCallTotal.WithLabelValues("search_course_content", "ok").Inc()

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "course_rag_search_outcome_total")
	assert.Contains(t, out, `outcome="course_not_found"`)
	assert.Contains(t, out, "course_rag_tool_call_total")
}
