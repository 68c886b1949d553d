package table

import (
	"regexp"
	"strconv"
	"strings"
)

// StripLabel 将第 col 列中首个 "标签<delim>" 替换为单独的 delim
// 例如 "rule      : allow-web" -> ": allow-web"
func StripLabel(t *Table, col int, delim string) *Table {
	out := t.Clone()
	if col < 0 || col >= len(out.Columns) || delim == "" {
		return out
	}
	re := regexp.MustCompile(`^.*?` + regexp.QuoteMeta(delim))
	for i := range out.Rows {
		out.Rows[i].Values[col] = re.ReplaceAllLiteralString(out.Rows[i].Values[col], delim)
	}
	return out
}

// RemoveAll 从所有列中删除子串 s，并去除首尾空白
func RemoveAll(t *Table, s string) *Table {
	out := t.Clone()
	for i := range out.Rows {
		for j, v := range out.Rows[i].Values {
			if s != "" {
				v = strings.ReplaceAll(v, s, "")
			}
			out.Rows[i].Values[j] = strings.TrimSpace(v)
		}
	}
	return out
}

// StripPatterns 从所有列中删除匹配任一正则的片段，并去除首尾空白
func StripPatterns(t *Table, patterns []*regexp.Regexp) *Table {
	out := t.Clone()
	for i := range out.Rows {
		for j, v := range out.Rows[i].Values {
			for _, re := range patterns {
				v = re.ReplaceAllLiteralString(v, "")
			}
			out.Rows[i].Values[j] = strings.TrimSpace(v)
		}
	}
	return out
}

// DedupLast 合并取值完全相同的行，保留最后一次出现的行
// 结果按保留行在源中的先后排序
func DedupLast(t *Table) *Table {
	last := make(map[string]int, len(t.Rows))
	for i, r := range t.Rows {
		last[tupleKey(r.Values)] = i
	}
	out := &Table{Columns: append([]string(nil), t.Columns...), Rows: make([]Row, 0, len(last))}
	for i, r := range t.Rows {
		if last[tupleKey(r.Values)] != i {
			continue
		}
		out.Rows = append(out.Rows, Row{Line: r.Line, Values: append([]string(nil), r.Values...)})
	}
	return out
}

// tupleKey 每个取值带长度前缀，任意字节内容都不会产生歧义
func tupleKey(values []string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}
