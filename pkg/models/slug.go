package models

import "strings"

// SlugFromTitle derives an article slug: spaces become hyphens, other
// characters that are not ASCII letters or digits are dropped, leading
// hyphens are skipped and the result is lower-cased. A trailing hyphen gets
// an "x" appended.
func SlugFromTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r == ' ':
			if b.Len() == 0 {
				continue
			}
			b.WriteByte('-')
		case r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	slug := strings.ToLower(b.String())
	if strings.HasSuffix(slug, "-") {
		slug += "x"
	}
	return slug
}
