package service

import "github.com/sshcollectorpro/activerules/internal/table"

// CommandTemplate 追问命令模板：Prefix + 会话 ID + Suffix
type CommandTemplate struct {
	Prefix string
	Suffix string
}

// Render 生成单条命令
func (t CommandTemplate) Render(id string) string {
	return t.Prefix + id + t.Suffix
}

// Synthesize 为每一行的首列生成一条命令，顺序与行顺序一致
func Synthesize(t *table.Table, tpl CommandTemplate) []string {
	commands := make([]string, 0, t.Len())
	if t == nil {
		return commands
	}
	for _, r := range t.Rows {
		id := ""
		if len(r.Values) > 0 {
			id = r.Values[0]
		}
		commands = append(commands, tpl.Render(id))
	}
	return commands
}

// CommandTable 将命令列表包装为单列表格，用于写出中间产物
func CommandTable(commands []string) *table.Table {
	rows := make([][]string, 0, len(commands))
	for _, c := range commands {
		rows = append(rows, []string{c})
	}
	return table.New([]string{"command"}, rows...)
}
