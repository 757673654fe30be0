package identifier

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// romanize 把名字转换为大写 ASCII 字母，汉字按拼音展开，其余字符丢弃
func romanize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			for _, py := range pinyin.LazyConvert(string(r), nil) {
				b.WriteString(strings.ToUpper(py))
			}
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// prefix 取罗马化后的前 n 个字母，不足时用 X 补齐
func prefix(s string, n int) string {
	letters := romanize(s)
	if len(letters) >= n {
		return letters[:n]
	}
	return letters + strings.Repeat("X", n-len(letters))
}
