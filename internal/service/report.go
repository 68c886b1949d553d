package service

import (
	"regexp"
	"strings"

	"github.com/sshcollectorpro/activerules/internal/table"
)

// ReportOptions 规则报表的解析与规范化参数
type ReportOptions struct {
	// Title 报表标题行，同时作为合并文本的表头
	Title     string
	Delimiter string
	Exclude   table.ExclusionSet
	// LabelDelimiter 标签分隔符，如 "rule : allow-web" 中的 ":"
	LabelDelimiter string
	StripPatterns  []*regexp.Regexp
}

// BuildRuleReport 合并追问命令的回显并生成去重后的规则报表
// outputs 必须与命令生成顺序一致；重复行保留最后一次出现
func BuildRuleReport(outputs []string, opts ReportOptions) (*table.Table, error) {
	var blob strings.Builder
	blob.WriteString(opts.Title)
	blob.WriteByte('\n')
	for _, out := range outputs {
		out = strings.ReplaceAll(out, "\r\n", "\n")
		blob.WriteString(out)
		if !strings.HasSuffix(out, "\n") {
			blob.WriteByte('\n')
		}
	}

	t, err := table.Parse(blob.String(), table.ParseOptions{Delimiter: opts.Delimiter})
	if err != nil {
		return nil, err
	}
	t = table.Filter(t, opts.Exclude)

	if opts.LabelDelimiter != "" {
		t = table.StripLabel(t, 0, opts.LabelDelimiter)
		t = table.RemoveAll(t, opts.LabelDelimiter)
	}
	// 去重以最终取值为准，虚拟系统标记须先去除
	t = table.StripPatterns(t, opts.StripPatterns)
	t = table.DedupLast(t)
	return t, nil
}

// RuleNames 报表首列（规则名）
func RuleNames(t *table.Table) []string {
	names := make([]string, 0, t.Len())
	for _, r := range t.Rows {
		if len(r.Values) > 0 {
			names = append(names, r.Values[0])
		}
	}
	return names
}
