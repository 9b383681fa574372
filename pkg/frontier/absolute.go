package frontier

import (
	"net/url"
	"strings"
)

// Absolute はサイト相対のURLをベースアドレスで絶対URLに変換します。
//
//   - ベースアドレスで始まる、またはスキームを持つURLはそのまま返します。
//   - "//host/path" 形式はベースアドレスのスキームを補います。
//   - それ以外はベースアドレスとパスを "/" 1つで連結します。
func Absolute(base, raw string) string {
	raw = strings.TrimSpace(raw)
	base = strings.TrimSpace(base)
	if raw == "" {
		return strings.TrimRight(base, "/")
	}
	if base == "" {
		return raw
	}

	if strings.HasPrefix(raw, base) {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		if b, err := url.Parse(base); err == nil && b.Scheme != "" {
			return b.Scheme + ":" + raw
		}
		return "https:" + raw
	}
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		return raw
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(raw, "/")
}
