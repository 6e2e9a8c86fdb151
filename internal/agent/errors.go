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

import (
	"errors"
	"fmt"
)

var (
	// ErrGeneration 模型调用失败
	ErrGeneration = errors.New("generation failed")
	// ErrTimeout 单轮问答超过 query.timeout
	ErrTimeout = errors.New("query timed out")
)

// GenerationError 记录失败发生在哪次模型调用
type GenerationError struct {
	Phase Phase
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s model call: %v", e.Phase, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGeneration, e.Err}
}
