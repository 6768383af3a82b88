package email

import (
	"strings"
)

// Normalize trims surrounding space and lower-cases the domain part.
func Normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return addr
	}
	return addr[:at+1] + strings.ToLower(addr[at+1:])
}

// Mask hides the local part of an address for logs, keeping its first rune
// and the domain: "jean.dupont@example.org" becomes "j***@example.org".
// Values without an '@' are masked entirely.
func Mask(addr string) string {
	addr = Normalize(addr)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		if addr == "" {
			return ""
		}
		return "***"
	}
	local := []rune(addr[:at])
	return string(local[0]) + "***" + addr[at:]
}
