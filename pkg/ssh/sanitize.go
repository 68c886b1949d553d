package ssh

import "strings"

// Sanitize 移除 ANSI 转义序列与不可见控制符，并去除首尾空白
// 制表符保留，避免破坏列对齐
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	skip := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if skip {
			// CSI 序列以字母结尾
			if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') {
				skip = false
			}
			continue
		}
		if ch == 0x1b {
			skip = true
			continue
		}
		if ch < 0x20 && ch != '\t' {
			continue
		}
		b.WriteByte(ch)
	}
	return strings.TrimSpace(b.String())
}

// normalizeNewlines CRLF -> LF，孤立 CR 去除
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "")
}

// promptMatcher 提示符识别
// 登录后捕获首个提示符的主机名前缀，之后要求提示符行包含该前缀
type promptMatcher struct {
	suffixes []string
	prefix   string
}

func (m *promptMatcher) isPrompt(clean string) bool {
	if clean == "" {
		return false
	}
	for _, suf := range m.suffixes {
		if suf == "" || !strings.HasSuffix(clean, suf) {
			continue
		}
		if m.prefix != "" && !strings.Contains(clean, m.prefix) {
			continue
		}
		return true
	}
	return false
}

// capture 记录提示符前缀（去掉匹配到的后缀）
func (m *promptMatcher) capture(clean string) {
	for _, suf := range m.suffixes {
		if suf != "" && strings.HasSuffix(clean, suf) {
			if p := strings.TrimSpace(strings.TrimSuffix(clean, suf)); p != "" {
				m.prefix = p
			}
			return
		}
	}
}

// isEcho 判断行是否为命令回显（可能带有提示符前缀）
func (m *promptMatcher) isEcho(clean, command string) bool {
	cmd := strings.TrimSpace(command)
	if clean == "" || cmd == "" {
		return false
	}
	body := clean
	if m.prefix != "" {
		if idx := strings.Index(body, m.prefix); idx >= 0 {
			body = body[idx+len(m.prefix):]
			for _, suf := range m.suffixes {
				body = strings.TrimPrefix(body, suf)
			}
		}
	}
	return strings.HasSuffix(strings.TrimSpace(body), cmd)
}

// matchHint 返回回显中首个以错误提示开头的行所匹配的提示
func matchHint(output string, hints []string) string {
	for _, ln := range strings.Split(output, "\n") {
		l := strings.ToLower(strings.TrimSpace(ln))
		if l == "" {
			continue
		}
		for _, h := range hints {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" && strings.HasPrefix(l, h) {
				return strings.TrimSpace(ln)
			}
		}
	}
	return ""
}
