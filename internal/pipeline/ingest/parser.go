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

// Package ingest 解析课程文档、切块并写入课程目录与内容两个向量集合
package ingest

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/storage/metadata"
)

var (
	titleLine      = regexp.MustCompile(`(?i)^course\s+title:\s*(.+)$`)
	linkLine       = regexp.MustCompile(`(?i)^course\s+link:\s*(.+)$`)
	instructorLine = regexp.MustCompile(`(?i)^course\s+instructor:\s*(.+)$`)
	lessonLine     = regexp.MustCompile(`(?i)^lesson\s+(\d+)\s*:\s*(.*)$`)
	lessonLinkLine = regexp.MustCompile(`(?i)^lesson\s+link:\s*(.+)$`)
)

// LessonText 一节课及其正文
type LessonText struct {
	Number int
	Title  string
	Link   *string
	Body   string
}

// ParsedCourse 解析后的课程文档
type ParsedCourse struct {
	Course  metadata.Course
	Lessons []LessonText
	// Preamble 第一节课之前的正文；没有任何 Lesson 行时为全文
	Preamble string
}

// ParseCourse 解析课程文本：
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//	Lesson 0: <lesson title>
//	Lesson Link: <url>
//	<transcript...>
//
// 头部字段可缺省；缺少标题时使用 fallbackTitle
func ParseCourse(text, fallbackTitle string) (*ParsedCourse, error) {
	pc := &ParsedCourse{}
	var (
		current  *LessonText
		body     strings.Builder
		preamble strings.Builder
		inHeader = true
	)
	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(body.String())
			pc.Lessons = append(pc.Lessons, *current)
		}
		body.Reset()
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if inHeader {
			switch {
			case trimmed == "":
				continue
			case titleLine.MatchString(trimmed):
				pc.Course.Title = strings.TrimSpace(titleLine.FindStringSubmatch(trimmed)[1])
				continue
			case linkLine.MatchString(trimmed):
				pc.Course.Link = common.StringPtr(strings.TrimSpace(linkLine.FindStringSubmatch(trimmed)[1]))
				continue
			case instructorLine.MatchString(trimmed):
				pc.Course.Instructor = common.StringPtr(strings.TrimSpace(instructorLine.FindStringSubmatch(trimmed)[1]))
				continue
			}
			inHeader = false
		}

		if m := lessonLine.FindStringSubmatch(trimmed); m != nil {
			flush()
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, common.NewPipelineError("parser", "课时编号无效", fmt.Errorf("%w: %q", common.ErrParsingFailed, trimmed))
			}
			current = &LessonText{Number: n, Title: strings.TrimSpace(m[2])}
			continue
		}
		if current != nil && body.Len() == 0 && trimmed == "" {
			continue
		}
		if current != nil && current.Link == nil && body.Len() == 0 {
			if m := lessonLinkLine.FindStringSubmatch(trimmed); m != nil {
				current.Link = common.StringPtr(strings.TrimSpace(m[1]))
				continue
			}
		}
		if current == nil {
			preamble.WriteString(line)
			preamble.WriteByte('\n')
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, common.NewPipelineError("parser", "读取文档失败", fmt.Errorf("%w: %w", common.ErrParsingFailed, err))
	}
	flush()

	pc.Preamble = strings.TrimSpace(preamble.String())
	if pc.Course.Title == "" {
		pc.Course.Title = strings.TrimSpace(fallbackTitle)
	}
	if pc.Course.Title == "" {
		return nil, common.NewPipelineError("parser", "缺少课程标题", common.ErrParsingFailed)
	}
	for _, l := range pc.Lessons {
		pc.Course.Lessons = append(pc.Course.Lessons, metadata.Lesson{Number: l.Number, Title: l.Title, Link: l.Link})
	}
	return pc, nil
}
