package dispatch

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "…"

// minPreviewRunes is the shortest preview worth sending; below it the quote is
// dropped entirely.
const minPreviewRunes = 24

type BodyInput struct {
	BusinessName string
	ReviewText   string
	Link         string
	// Override replaces the composed body. The link is appended when absent.
	Override string
}

// ComposeBody builds the outgoing text within limit runes. It shortens the
// review preview first, then drops it, then shortens the intro. The link is
// never shortened, so a link longer than limit yields a body over the limit.
func ComposeBody(in BodyInput, limit int) string {
	link := strings.TrimSpace(in.Link)

	if override := strings.TrimSpace(in.Override); override != "" {
		if link != "" && !strings.Contains(override, link) {
			override = override + " " + link
		}
		if limit <= 0 || runeLen(override) <= limit {
			return override
		}
		prefix := strings.TrimSpace(strings.Replace(override, link, "", 1))
		return joinFitted(prefix, link, limit)
	}

	intro := "We'd love a quick Google review!"
	if name := strings.TrimSpace(in.BusinessName); name != "" {
		intro = "Thanks for visiting " + name + "! We'd love a quick Google review."
	}
	preview := strings.Join(strings.Fields(in.ReviewText), " ")

	full := join(intro, quote(preview), link)
	if limit <= 0 || runeLen(full) <= limit {
		return full
	}

	if preview != "" {
		// Space left for the quoted preview once intro and link are placed.
		room := limit - runeLen(join(intro, link)) - 1
		if room-2 >= minPreviewRunes {
			return join(intro, quote(truncate(preview, room-2)), link)
		}
	}

	return joinFitted(intro, link, limit)
}

// joinFitted keeps link whole and shortens prefix to whatever room is left.
func joinFitted(prefix, link string, limit int) string {
	if link == "" {
		return truncate(prefix, limit)
	}
	room := limit - runeLen(link) - 1
	if room <= 0 || prefix == "" {
		return link
	}
	return join(truncate(prefix, room), link)
}

func quote(s string) string {
	if s == "" {
		return ""
	}
	return "\"" + s + "\""
}

func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// truncate shortens s to at most n runes, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if runeLen(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return ellipsis
	}
	return strings.TrimRight(string(runes[:n-1]), " ") + ellipsis
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
