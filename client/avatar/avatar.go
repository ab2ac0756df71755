// Package avatar renders deterministic placeholder pictures for users
// without a custom profile picture.
package avatar

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"
)

const size = 200

var idPalette = []string{"😀", "😎", "🤩", "🥳", "😊", "🤓", "🤠", "👻", "🐱", "🦊", "🐶", "🐼"}

var letterEmoji = map[rune]string{
	'a': "😎", 'b': "🐻", 'c': "🍪", 'd': "🐶", 'e': "🦅",
	'f': "🦊", 'g': "🦍", 'h': "🐹", 'i': "🦔", 'j': "🃏",
	'k': "🦘", 'l': "🦁", 'm': "🐵", 'n': "🐢", 'o': "🦉",
	'p': "🐼", 'q': "👸", 'r': "🤖", 's': "🐍", 't': "🐯",
	'u': "🦄", 'v': "🧛", 'w': "🐺", 'x': "❌", 'y': "🧠",
	'z': "🧟",
}

const defaultEmoji = "😊"

// Hash folds s over its UTF-16 code units with hash = c + (hash<<5 - hash).
// The shift truncates to 32 bits, the sum does not, so the result matches
// the same loop in a browser.
func Hash(s string) int64 {
	var h int64
	for _, c := range utf16.Encode([]rune(s)) {
		shifted := int64(int32(uint32(h) << 5))
		h = int64(c) + (shifted - h)
	}
	return h
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ForID is the placeholder keyed by a user id: pastel square, emoji from a
// fixed palette.
func ForID(id string) string {
	h := Hash(id)
	hue := abs(h % 360)
	emoji := idPalette[abs(h%int64(len(idPalette)))]

	svg := fmt.Sprintf(
		`<svg width="%[1]d" height="%[1]d" viewBox="0 0 %[1]d %[1]d" xmlns="http://www.w3.org/2000/svg">`+
			`<rect width="%[1]d" height="%[1]d" fill="hsl(%[2]d, 70%%, 80%%)"/>`+
			`<text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" font-family="Arial" font-size="120">%[3]s</text>`+
			`</svg>`,
		size, hue, emoji)
	return dataURI(svg)
}

// EmojiFor returns the emoji picked by the first letter of username.
func EmojiFor(username string) string {
	if username == "" {
		return defaultEmoji
	}
	first := unicode.ToLower([]rune(username)[0])
	if e, ok := letterEmoji[first]; ok {
		return e
	}
	return defaultEmoji
}

// ForUsername is the round placeholder keyed by username. Empty usernames
// yield "".
func ForUsername(username string) string {
	if username == "" {
		return ""
	}
	hue := abs(Hash(username) % 360)
	svg := fmt.Sprintf(
		`<svg width="%[1]d" height="%[1]d" viewBox="0 0 %[1]d %[1]d" xmlns="http://www.w3.org/2000/svg">`+
			`<rect width="%[1]d" height="%[1]d" fill="hsl(%[2]d, 70%%, 60%%)" rx="%[3]d" ry="%[3]d"/>`+
			`<text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" font-size="%[3]d">%[4]s</text>`+
			`</svg>`,
		size, hue, size/2, EmojiFor(username))
	return dataURI(svg)
}

// Picture picks the custom picture when set, then the username placeholder,
// then the id placeholder.
func Picture(profilePic, username, id string) string {
	if strings.TrimSpace(profilePic) != "" {
		return profilePic
	}
	if username != "" {
		return ForUsername(username)
	}
	return ForID(id)
}

// Glyph is the emoji a terminal view shows in place of picture.
func Glyph(picture, username, id string) string {
	switch {
	case picture != "" && !strings.HasPrefix(picture, "data:image/svg+xml"):
		return "🖼"
	case username != "":
		return EmojiFor(username)
	default:
		return idPalette[abs(Hash(id)%int64(len(idPalette)))]
	}
}

func dataURI(svg string) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
