package sitetool

import (
	"strings"
	"unicode"
)

// ParseArgs возвращает аргументы, следующие за словом команды.
// Текст делится по первому пробельному промежутку, остаток — по любым
// пробелам. Если аргументов меньше minArgs, возвращается пустой список.
func ParseArgs(text string, minArgs int) []string {
	t := strings.TrimSpace(text)
	i := strings.IndexFunc(t, unicode.IsSpace)
	if i < 0 {
		return nil
	}
	args := strings.Fields(t[i:])
	if len(args) == 0 || len(args) < minArgs {
		return nil
	}
	return args
}

// CommandName выделяет имя команды: "/tcping@SiteBot bing.com" -> "tcping".
func CommandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}
