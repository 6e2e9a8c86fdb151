package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"course-rag/pkg/config"
)

const version = "course-rag cli 0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println(version)
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "query":
		text, sessionID := parseQueryArgs(args)
		if text == "" {
			fmt.Fprintf(os.Stderr, "Usage: course-rag query <text> [--session id]\n")
			os.Exit(1)
		}
		runQuery(text, sessionID)
	case "chat":
		runChat(os.Stdin, os.Stdout)
	case "courses":
		runCourses()
	case "clear-session":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: course-rag clear-session <session_id>\n")
			os.Exit(1)
		}
		runClearSession(args[0])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: course-rag <command> [args]")
	fmt.Println("  version                      - 显示版本")
	fmt.Println("  health                       - 检查 API 服务")
	fmt.Println("  config                       - 显示配置概要")
	fmt.Println("  query <text> [--session id]  - 单次提问")
	fmt.Println("  chat                         - 交互式对话（自动沿用会话）")
	fmt.Println("  courses                      - 列出已索引课程")
	fmt.Println("  clear-session <session_id>   - 清除会话历史")
	fmt.Println("环境变量: COURSE_RAG_API_URL（默认 http://localhost:8000）, COURSE_RAG_TOKEN")
}

// parseQueryArgs 支持 --session id 与 --session=id，其余参数拼接为问题
func parseQueryArgs(args []string) (text, sessionID string) {
	var words []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--session" && i+1 < len(args):
			sessionID = args[i+1]
			i++
		case strings.HasPrefix(a, "--session="):
			sessionID = strings.TrimPrefix(a, "--session=")
		default:
			words = append(words, a)
		}
	}
	return strings.TrimSpace(strings.Join(words, " ")), sessionID
}

func runConfig() {
	cfg, err := config.LoadAPIConfigWithModel("configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("api.host=%s\n", cfg.API.Host)
	fmt.Printf("api.port=%d\n", cfg.API.Port)
	fmt.Printf("model.defaults.llm=%s\n", cfg.Model.Defaults.LLM)
	fmt.Printf("search.max_results=%d\n", cfg.Search.MaxResults)
	fmt.Printf("session.max_history=%d\n", cfg.Session.MaxHistory)
	fmt.Printf("docs.path=%s\n", cfg.Docs.Path)
}

func runHealth() {
	out, err := checkHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out["status"])
}

func runQuery(text, sessionID string) {
	resp, err := postQuery(text, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询失败: %v\n", err)
		os.Exit(1)
	}
	printAnswer(os.Stdout, resp)
	fmt.Printf("\nsession: %s\n", resp.SessionID)
}

func runCourses() {
	stats, err := listCourses()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取课程失败: %v\n", err)
		os.Exit(1)
	}
	printCourses(os.Stdout, stats)
}

func runClearSession(id string) {
	if err := deleteSession(id); err != nil {
		fmt.Fprintf(os.Stderr, "清除会话失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}

// runChat 逐行读取问题，沿用服务端返回的 session_id；exit/quit 结束
func runChat(in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)
	sessionID := ""
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg == "exit" || msg == "quit" {
			break
		}
		if msg != "" {
			resp, qerr := postQuery(msg, sessionID)
			if qerr != nil {
				fmt.Fprintf(out, "查询失败: %v\n", qerr)
			} else {
				sessionID = resp.SessionID
				printAnswer(out, resp)
			}
		}
		if err != nil {
			break
		}
	}
}

func printAnswer(w io.Writer, resp *queryResponse) {
	fmt.Fprintln(w, resp.Answer)
	if len(resp.SourceLinks) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, s := range resp.SourceLinks {
		if s.URL != nil && *s.URL != "" {
			fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, s.Title, *s.URL)
		} else {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s.Title)
		}
	}
}

func printCourses(w io.Writer, stats *courseStats) {
	fmt.Fprintf(w, "Courses: %d\n", stats.TotalCourses)
	for _, t := range stats.CourseTitles {
		fmt.Fprintf(w, "  - %s\n", t)
	}
}
