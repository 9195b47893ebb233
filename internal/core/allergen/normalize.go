package allergen

import (
	"strings"
)

// Entry 結構化食材項目，不同供應商提供的欄位不一
type Entry struct {
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

// best 依序取 Text、Name、ID 中第一個非空欄位
func (e Entry) best() string {
	for _, s := range []string{e.Text, e.Name, e.ID} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func normToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isSeparator(r rune) bool {
	switch r {
	case ',', ';', '(', ')', '\n':
		return true
	}
	return false
}

// FromText 將自由文字的食材字串切成小寫 token
func FromText(s string) []string {
	parts := strings.FieldsFunc(strings.ToLower(s), isSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FromEntries 將結構化食材列表轉為 token
func FromEntries(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if t := normToken(e.best()); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FromSlots 將固定欄位（如 1..20 號食材欄）轉為 token，空欄位略過
func FromSlots(slots []string) []string {
	return Clean(slots)
}

// Clean 小寫、去空白並移除空字串，不去重
func Clean(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, s := range tokens {
		if t := normToken(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
