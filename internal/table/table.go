package table

// Table 解析后的表格（列名来自表头行）
type Table struct {
	Columns []string
	Rows    []Row
}

// Row 数据行
// Line 为源文本中的行号（从 1 开始），仅用于溯源，不参与比较与输出
type Row struct {
	Line   int
	Values []string
}

// Len 返回数据行数
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Record 返回第 i 行的 列名 -> 值 映射
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Columns))
	for j, col := range t.Columns {
		rec[col] = t.Rows[i].Values[j]
	}
	return rec
}

// Column 返回指定列的全部取值；列不存在时返回 nil
func (t *Table) Column(name string) []string {
	idx := -1
	for j, col := range t.Columns {
		if col == name {
			idx = j
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r.Values[idx])
	}
	return out
}

// Clone 深拷贝，保证各处理阶段互不影响
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = Row{Line: r.Line, Values: append([]string(nil), r.Values...)}
	}
	return out
}

// New 使用给定列名与行值构造表格，行号按顺序从 1 编号
func New(columns []string, rows ...[]string) *Table {
	t := &Table{Columns: append([]string(nil), columns...), Rows: make([]Row, 0, len(rows))}
	for i, vals := range rows {
		t.Rows = append(t.Rows, Row{Line: i + 1, Values: append([]string(nil), vals...)})
	}
	return t
}
