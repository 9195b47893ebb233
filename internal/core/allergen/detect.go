package allergen

import (
	"sort"
	"strings"
)

// Reason 過敏原被標記的原因
type Reason string

const (
	ReasonDirect        Reason = "DIRECT"
	ReasonAlias         Reason = "ALIAS"
	ReasonTag           Reason = "TAG"
	ReasonRelated       Reason = "RELATED"
	ReasonCrossReactive Reason = "CROSS_REACTIVE"
)

// Flag 一筆過敏原命中紀錄
type Flag struct {
	Allergen     string `json:"allergen"`
	Reason       Reason `json:"reason"`
	MatchedToken string `json:"matched_token"`
}

// CrossRule 交叉過敏規則：使用者過敏原完全等於 Allergen 時，
// 任何包含 Members 之一的食材都會被標記
type CrossRule struct {
	Allergen string
	Members  []string
}

// PenicillinRule 青黴素家族藥名
var PenicillinRule = CrossRule{
	Allergen: "penicillin",
	Members: []string{
		"amoxicillin",
		"ampicillin",
		"augmentin",
		"clavulanate",
		"oxacillin",
		"dicloxacillin",
		"nafcillin",
		"methicillin",
		"flucloxacillin",
		"piperacillin",
		"tazobactam",
	},
}

// Options 單次偵測的額外資料
type Options struct {
	Tags       []string            // 供應商過敏原標籤，例如 "en:milk"
	TraceTags  []string            // 供應商微量標籤
	Related    map[string][]string // 過敏原 → 使用者相關食品 token 快照
	CrossRules []CrossRule
}

// Engine 過敏原偵測引擎，本身無狀態
type Engine struct {
	dict Dictionary
}

// NewEngine 以指定同義詞表建立引擎；nil 時使用內建表
func NewEngine(dict Dictionary) *Engine {
	if dict == nil {
		dict = DefaultDictionary()
	}
	return &Engine{dict: dict}
}

var defaultEngine = NewEngine(nil)

// Detect 使用內建同義詞表偵測
func Detect(ingredients, allergens []string, opts Options) []Flag {
	return defaultEngine.Detect(ingredients, allergens, opts)
}

// Detect 對食材列表執行所有比對，結果以 (過敏原, 原因, 命中字串) 去重
func (e *Engine) Detect(ingredients, allergens []string, opts Options) []Flag {
	ings := Clean(ingredients)
	users := Clean(allergens)

	set := make(map[Flag]struct{})
	add := func(a string, r Reason, tok string) {
		set[Flag{Allergen: a, Reason: r, MatchedToken: tok}] = struct{}{}
	}

	// 1) 標籤比對
	for _, raw := range append(append([]string(nil), opts.Tags...), opts.TraceTags...) {
		base := tagBase(raw)
		if base == "" {
			continue
		}
		single := singular(base)
		for _, a := range users {
			if a == base || a == single {
				add(a, ReasonTag, normToken(raw))
			}
		}
	}

	for _, a := range users {
		// 2) 直接子字串（雙向）
		for _, ing := range ings {
			if strings.Contains(ing, a) || strings.Contains(a, ing) {
				add(a, ReasonDirect, ing)
			}
		}

		// 3) 同義詞
		for _, syn := range e.dict.Synonyms(a) {
			syn = normToken(syn)
			if syn == "" {
				continue
			}
			for _, ing := range ings {
				if strings.Contains(ing, syn) {
					add(a, ReasonAlias, syn)
				}
			}
		}

		// 5) 交叉過敏
		for _, rule := range opts.CrossRules {
			if normToken(rule.Allergen) != a {
				continue
			}
			for _, m := range Clean(rule.Members) {
				for _, ing := range ings {
					if strings.Contains(ing, m) {
						add(a, ReasonCrossReactive, m)
					}
				}
			}
		}
	}

	// 4) 使用者相關食品，只比對使用者的過敏原
	declared := make(map[string]struct{}, len(users))
	for _, a := range users {
		declared[a] = struct{}{}
	}
	for a, tokens := range opts.Related {
		key := normToken(a)
		if _, ok := declared[key]; !ok {
			continue
		}
		for _, tok := range Clean(tokens) {
			for _, ing := range ings {
				if strings.Contains(ing, tok) {
					add(key, ReasonRelated, tok)
				}
			}
		}
	}

	return sortFlags(set)
}

func sortFlags(set map[Flag]struct{}) []Flag {
	out := make([]Flag, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Allergen != out[j].Allergen {
			return out[i].Allergen < out[j].Allergen
		}
		if out[i].Reason != out[j].Reason {
			return out[i].Reason < out[j].Reason
		}
		return out[i].MatchedToken < out[j].MatchedToken
	})
	return out
}

// tagBase 去除語系/命名空間前綴，"en:milk" → "milk"
func tagBase(tag string) string {
	t := normToken(tag)
	if i := strings.LastIndex(t, ":"); i >= 0 {
		t = strings.TrimSpace(t[i+1:])
	}
	return t
}

// singular 去掉結尾的 s，"peanuts" → "peanut"
func singular(s string) string {
	if len(s) > 1 && strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}

// IsSafe 沒有任何命中即為安全；是否有食材資料由呼叫端判斷
func IsSafe(flags []Flag) bool {
	return len(flags) == 0
}

// Allergens 回傳被標記的過敏原（去重、排序）
func Allergens(flags []Flag) []string {
	seen := make(map[string]struct{}, len(flags))
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if _, ok := seen[f.Allergen]; ok {
			continue
		}
		seen[f.Allergen] = struct{}{}
		out = append(out, f.Allergen)
	}
	sort.Strings(out)
	return out
}
