package allergen

import (
	"strings"
)

// Dictionary 過敏原標準鍵 → 同義詞列表（皆為小寫子字串）
type Dictionary map[string][]string

// defaultDictionary 內建過敏原同義詞表
var defaultDictionary = Dictionary{
	"peanut":    {"peanut", "groundnut", "arachis"},
	"lactose":   {"milk", "lactose", "whey", "casein", "cream", "yogurt"},
	"milk":      {"milk", "whey", "casein", "lactose"},
	"gluten":    {"wheat", "gluten", "barley", "rye"},
	"wheat":     {"wheat", "flour", "semolina", "durum"},
	"egg":       {"egg", "albumin", "ovalbumin", "ovum"},
	"fish":      {"fish", "salmon", "tuna", "cod", "anchovy"},
	"shellfish": {"shrimp", "prawn", "lobster", "crab"},
	"soy":       {"soy", "soya", "soybean", "soy lecithin"},
	"tree_nuts": {"almond", "cashew", "walnut", "pecan", "hazelnut", "pistachio"},
}

// DefaultDictionary 回傳內建同義詞表的副本
func DefaultDictionary() Dictionary {
	return defaultDictionary.Clone()
}

// Clone 深拷貝
func (d Dictionary) Clone() Dictionary {
	out := make(Dictionary, len(d))
	for k, v := range d {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// lookupKey "Tree Nuts" 與 "tree_nuts" 視為同一鍵
func lookupKey(key string) string {
	return strings.ReplaceAll(normToken(key), " ", "_")
}

// Lookup 不分大小寫查詢；找不到時 ok 為 false
func (d Dictionary) Lookup(key string) ([]string, bool) {
	k := normToken(key)
	if syns, ok := d[k]; ok {
		return append([]string(nil), syns...), true
	}
	if syns, ok := d[lookupKey(k)]; ok {
		return append([]string(nil), syns...), true
	}
	return nil, false
}

// Synonyms 查詢同義詞；未知的過敏原回傳只包含自身的集合
func (d Dictionary) Synonyms(key string) []string {
	if syns, ok := d.Lookup(key); ok {
		return syns
	}
	k := normToken(key)
	if k == "" {
		return nil
	}
	return []string{k}
}
