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

package builtin

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/tool"
)

// WebPageToolName 网页抓取工具名
const WebPageToolName = "fetch_web_page"

const (
	defaultWebTimeout  = 15 * time.Second
	defaultWebMaxChars = 4000
	termContextChars   = 50
)

// WebPageTool 抓取网页正文，可按关键词返回上下文片段
type WebPageTool struct {
	client   *resty.Client
	maxChars int
}

// NewWebPageTool 创建 fetch_web_page 工具；timeout/maxChars 为 0 时使用默认值
func NewWebPageTool(timeout time.Duration, maxChars int) *WebPageTool {
	if timeout <= 0 {
		timeout = defaultWebTimeout
	}
	if maxChars <= 0 {
		maxChars = defaultWebMaxChars
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "course-rag/1.0").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &WebPageTool{client: client, maxChars: maxChars}
}

// Definition 实现 tool.Tool
func (t *WebPageTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        WebPageToolName,
		Description: "Fetch a web page (for example a course or lesson link) and return its text, or the context around given search terms",
		InputSchema: tool.Schema{
			Type: "object",
			Properties: map[string]tool.SchemaProperty{
				"url": {Type: "string", Description: "Absolute http(s) URL to fetch"},
				"search_terms": {
					Type:        "array",
					Description: "Optional terms to look for in the page text",
					Items:       &tool.SchemaProperty{Type: "string"},
				},
			},
			Required: []string{"url"},
		},
	}
}

// Execute 实现 tool.Tool
func (t *WebPageTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	raw, err := tool.RequiredString(input, "url")
	if err != nil {
		return tool.Result{}, common.NewValidationError("url", err.Error())
	}
	u, err := parsePageURL(raw)
	if err != nil {
		return tool.Result{}, err
	}
	terms, err := tool.StringsArg(input, "search_terms")
	if err != nil {
		return tool.Result{}, common.NewValidationError("search_terms", err.Error())
	}

	doc, err := t.fetch(ctx, u)
	if err != nil {
		return tool.Result{}, err
	}
	title, text := pageText(doc)

	var content string
	if len(terms) > 0 {
		content = formatTermContexts(u.String(), title, text, terms)
	} else {
		content = fmt.Sprintf("URL: %s\nTitle: %s\n\n%s", u, title, truncateRunes(text, t.maxChars))
	}
	return tool.Result{Content: content}, nil
}

// formatTermContexts 对每个命中词给出首次出现处前后 50 字符的上下文（不区分大小写）
func formatTermContexts(pageURL, title, text string, terms []string) string {
	lower := []rune(strings.ToLower(text))
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\nTitle: %s\n", pageURL, title)
	found := 0
	for _, term := range terms {
		needle := []rune(strings.ToLower(strings.TrimSpace(term)))
		if len(needle) == 0 {
			continue
		}
		idx := indexRunes(lower, needle)
		if idx < 0 {
			continue
		}
		found++
		start := max(0, idx-termContextChars)
		end := min(len(lower), idx+len(needle)+termContextChars)
		fmt.Fprintf(&b, "\n[%s] ...%s...", term, strings.TrimSpace(string(lower[start:end])))
	}
	fmt.Fprintf(&b, "\n\nFound %d of %d terms", found, len(terms))
	return b.String()
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Heading 页面标题元素，Level 为 h1..h6
type Heading struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// StructuredContent 课程页面的结构化内容
type StructuredContent struct {
	Headings   []Heading  `json:"headings"`
	Paragraphs []string   `json:"paragraphs"`
	CodeBlocks []string   `json:"code_blocks"`
	Lists      [][]string `json:"lists"`
}

// CourseExtract 课程页面抽取结果；RawContent 与 fetch_web_page 的正文一致（按 maxChars 截断）
type CourseExtract struct {
	URL        string            `json:"url"`
	Title      string            `json:"title"`
	Structured StructuredContent `json:"structured_content"`
	RawContent string            `json:"raw_content"`
}

const (
	minParagraphChars = 20
	minCodeChars      = 5
)

// ExtractCourse 抓取课程页面并抽取标题、段落（>20 字符）、代码块（>5 字符）与列表
func (t *WebPageTool) ExtractCourse(ctx context.Context, rawURL string) (*CourseExtract, error) {
	u, err := parsePageURL(rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := t.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	title, text := pageText(doc)
	out := &CourseExtract{
		URL:   u.String(),
		Title: title,
		Structured: StructuredContent{
			Headings:   []Heading{},
			Paragraphs: []string{},
			CodeBlocks: []string{},
			Lists:      [][]string{},
		},
		RawContent: truncateRunes(text, t.maxChars),
	}
	sc := &out.Structured
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		sc.Headings = append(sc.Headings, Heading{Level: goquery.NodeName(s), Text: collapse(s.Text())})
	})
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if p := collapse(s.Text()); utf8.RuneCountInString(p) > minParagraphChars {
			sc.Paragraphs = append(sc.Paragraphs, p)
		}
	})
	// pre 内嵌 code 时两者都会收录
	doc.Find("pre, code").Each(func(_ int, s *goquery.Selection) {
		if c := strings.TrimSpace(s.Text()); utf8.RuneCountInString(c) > minCodeChars {
			sc.CodeBlocks = append(sc.CodeBlocks, c)
		}
	})
	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		var items []string
		s.Find("li").Each(func(_ int, li *goquery.Selection) {
			items = append(items, collapse(li.Text()))
		})
		if len(items) > 0 {
			sc.Lists = append(sc.Lists, items)
		}
	})
	return out, nil
}

func parsePageURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, common.NewValidationError("url", "must be an absolute http(s) URL")
	}
	return u, nil
}

func (t *WebPageTool) fetch(ctx context.Context, u *url.URL) (*goquery.Document, error) {
	resp, err := t.client.R().SetContext(ctx).Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}
	doc.Find("script, style, noscript").Remove()
	return doc, nil
}

func pageText(doc *goquery.Document) (title, text string) {
	return collapse(doc.Find("title").First().Text()), collapse(doc.Find("body").Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
