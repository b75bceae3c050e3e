package file

import (
	"path/filepath"
	"strings"
)

// SafeBase turns an arbitrary label into a file name usable in a
// Content-Disposition header: path separators, quotes and control
// characters become '-'.
func SafeBase(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "download"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f, r == '"', r == '/', r == '\\':
			return '-'
		default:
			return r
		}
	}, name)
}
