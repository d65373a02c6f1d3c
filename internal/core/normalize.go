package core

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize 去掉首尾空白、合并连续空白，并将每个词首字母大写
// "new  york" -> "New York"。只按空白分词，"winston-salem" -> "Winston-salem"。
func Normalize(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	// Caser 有内部状态，不能跨 goroutine 共享
	caser := cases.Title(language.Und)
	for i, w := range words {
		_, size := utf8.DecodeRuneInString(w)
		words[i] = caser.String(w[:size]) + w[size:]
	}
	return strings.Join(words, " ")
}

// ParseQuery 解析 "city,country"，两段都必须非空
func ParseQuery(q string) (city, country string, err error) {
	parts := strings.Split(q, ",")
	if len(parts) != 2 {
		return "", "", NewError(KindInvalidQuery, MsgInvalidQuery, nil)
	}
	city = strings.TrimSpace(parts[0])
	country = strings.TrimSpace(parts[1])
	if city == "" || country == "" {
		return "", "", NewError(KindInvalidQuery, MsgInvalidQuery, nil)
	}
	return city, country, nil
}

// pairKey 缓存对的比较键，与存储层的 NOCASE 比较一致
func pairKey(city, country string) string {
	return strings.ToLower(city) + "|" + strings.ToLower(country)
}
