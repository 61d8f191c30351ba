package names

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/mathisdt/webuntis-fetcher/internal/timetable"
)

const (
	kksStaffURL     = "https://www.kks-hannover.de/ueber-uns/personen/kollegium/"
	kksFetchTimeout = 30 * time.Second
	kksMaxPageSize  = 2 * 1024 * 1024
)

// kksExtraTeachers 网站上没有列出的教师
var kksExtraTeachers = map[string]string{
	"HAT": "Hatala",
	"PAP": "Pape",
	"VER": "Verwolt",
	"JK":  "Junitz-Kofeld",
	"PFL": "Pflanz",
	"BEJ": "Berger",
}

// newKKSHannover 抓取学校教师名单页面的第一个表格
// 以表头 "Kürzel" 与 "Nachname" 所在列建立缩写 → 姓氏映射
func newKKSHannover(ctx context.Context, cfg Config) (timetable.NameResolver, error) {
	url := cfg.URL
	if url == "" {
		url = kksStaffURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: kksFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("获取教师名单失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("获取教师名单失败: HTTP %d", resp.StatusCode)
	}

	mapping, err := parseStaffTable(io.LimitReader(resp.Body, kksMaxPageSize))
	if err != nil {
		return nil, err
	}
	for short, name := range kksExtraTeachers {
		if _, ok := mapping[short]; !ok {
			mapping[short] = name
		}
	}
	return Static(mapping), nil
}

func parseStaffTable(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("解析教师名单失败: %w", err)
	}
	table := findElement(doc, "table")
	if table == nil {
		return nil, fmt.Errorf("教师名单页面中没有表格")
	}

	rows := findAll(table, "tr")
	if len(rows) == 0 {
		return nil, fmt.Errorf("教师名单表格为空")
	}

	lastnameIdx, abbrevIdx := -1, -1
	for i, th := range findAll(rows[0], "th") {
		switch strings.TrimSpace(textContent(th)) {
		case "Nachname":
			lastnameIdx = i
		case "Kürzel":
			abbrevIdx = i
		}
	}
	if lastnameIdx < 0 || abbrevIdx < 0 {
		return nil, fmt.Errorf("教师名单表头缺少 Nachname 或 Kürzel")
	}

	mapping := make(map[string]string)
	for _, row := range rows[1:] {
		cells := findAll(row, "td")
		if len(cells) <= lastnameIdx || len(cells) <= abbrevIdx {
			continue
		}
		short := strings.TrimSpace(textContent(cells[abbrevIdx]))
		if short == "" {
			continue
		}
		mapping[short] = strings.TrimSpace(textContent(cells[lastnameIdx]))
	}
	return mapping, nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAll 按文档顺序查找所有指定标签（不进入匹配节点内部）
func findAll(n *html.Node, tag string) []*html.Node {
	var result []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			result = append(result, c)
			continue
		}
		result = append(result, findAll(c, tag)...)
	}
	return result
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
