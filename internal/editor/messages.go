package editor

import "strings"

var fallbackMessages = map[string]string{
	"en": "Failed to edit image. Please try again.",
	"id": "Gagal mengedit gambar. Silakan coba lagi.",
}

// FallbackMessage is shown when an edit fails without a usable message.
func FallbackMessage(locale string) string {
	if msg, ok := fallbackMessages[strings.ToLower(strings.TrimSpace(locale))]; ok {
		return msg
	}
	return fallbackMessages["en"]
}
