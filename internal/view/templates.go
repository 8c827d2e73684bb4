package view

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var categoryClasses = map[string]string{
	"discovery": "badge-discovery",
	"pattern":   "badge-pattern",
	"question":  "badge-question",
	"warning":   "badge-warning",
	"general":   "badge-general",
}

// CategoryClass 返回分类对应的样式类，未知分类使用 general。
func CategoryClass(category string) string {
	if class, ok := categoryClasses[category]; ok {
		return class
	}
	return categoryClasses["general"]
}

// FuncMap 汇总模板可用的辅助函数。now 用于计算相对时间。
func FuncMap(now func() time.Time) template.FuncMap {
	if now == nil {
		now = time.Now
	}
	return template.FuncMap{
		"markdown":      RenderContent,
		"excerpt":       Excerpt,
		"categoryClass": CategoryClass,
		"relativeTime": func(t time.Time) string {
			return FormatRelativeTime(now(), t)
		},
		"isoTime": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},
	}
}

// Templates 解析内嵌的页面模板。
func Templates(now func() time.Time) (*template.Template, error) {
	return template.New("").Funcs(FuncMap(now)).ParseFS(templateFS, "templates/*.html")
}
