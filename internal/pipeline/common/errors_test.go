package common

import (
	"errors"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		e := NewPipelineError("search", "failed", nil)
		if s := e.Error(); s == "" || len(s) < 10 {
			t.Errorf("Error() = %q", s)
		}
	})
	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("index unavailable")
		e := NewPipelineError("search", "content query", cause)
		if e.Unwrap() != cause {
			t.Error("Unwrap() should return cause")
		}
		if !errors.Is(e, cause) {
			t.Error("errors.Is should see cause")
		}
	})
}

func TestGetPipelineError(t *testing.T) {
	e := NewPipelineError("stage", "msg", ErrRetrievalFailed)
	wrapped := errors.Join(errors.New("outer"), e)
	got, ok := GetPipelineError(wrapped)
	if !ok || got != e {
		t.Errorf("GetPipelineError: ok=%v got=%v", ok, got)
	}
	if _, ok := GetPipelineError(errors.New("plain")); ok {
		t.Error("plain error should not be a PipelineError")
	}
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	e := NewValidationError("query", "required")
	if !errors.Is(e, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if e.Error() != "invalid query: required" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestSourceLabel(t *testing.T) {
	if got := (Source{CourseTitle: "MCP", LessonNumber: IntPtr(3)}).Label(); got != "MCP – Lesson 3" {
		t.Errorf("with lesson: %q", got)
	}
	if got := (Source{CourseTitle: "MCP"}).Label(); got != "MCP" {
		t.Errorf("without lesson: %q", got)
	}
	labels := Labels([]Source{{CourseTitle: "A"}, {CourseTitle: "B", LessonNumber: IntPtr(0)}})
	if len(labels) != 2 || labels[1] != "B – Lesson 0" {
		t.Errorf("Labels: %v", labels)
	}
}
