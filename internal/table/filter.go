package table

import "strings"

// ExclusionSet 排除词集合（大小写不敏感的子串匹配）
type ExclusionSet []string

// Matches 任一取值包含任一排除词即命中
func (s ExclusionSet) Matches(values []string) bool {
	for _, term := range s {
		t := strings.ToLower(term)
		if t == "" {
			continue
		}
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), t) {
				return true
			}
		}
	}
	return false
}

// Filter 移除命中排除词的行，返回新表；排除集为空时原样复制
func Filter(t *Table, terms ExclusionSet) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...), Rows: make([]Row, 0, len(t.Rows))}
	for _, r := range t.Rows {
		if terms.Matches(r.Values) {
			continue
		}
		out.Rows = append(out.Rows, Row{Line: r.Line, Values: append([]string(nil), r.Values...)})
	}
	return out
}
