package vendormail

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe      = regexp.MustCompile(`\$?[ \t]*(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?`)
	phoneRe      = regexp.MustCompile(`\+?[\d\s\-()]{10,}`)
	emailRe      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// "from <Name>" only counts on the line announcing the booking.
	senderNameRe = regexp.MustCompile(`(?m)\b(?i:booking)\b[^\r\n]*?\b(?i:from)[ \t]+([A-Z][A-Za-z'\-]*(?:[ \t]+[A-Z][A-Za-z'\-]*)*)`)
)

// ExtractPrice returns the first amount in text, thousands separators
// removed. No amount yields 0.
func ExtractPrice(text string) float64 {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "")+m[2], 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractPhone returns the first phone-shaped run in text reduced to digits,
// keeping a leading plus.
func ExtractPhone(text string) string {
	for _, m := range phoneRe.FindAllString(text, -1) {
		var b strings.Builder
		m = strings.TrimSpace(m)
		if strings.HasPrefix(m, "+") {
			b.WriteByte('+')
		}
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
				digits++
			}
		}
		if digits > 0 {
			return b.String()
		}
	}
	return ""
}

func ExtractEmail(text string) string {
	return emailRe.FindString(text)
}

// ExtractSenderName reads the name out of a "from Jane Smith" phrase. The
// first word is the first name and the remainder the last name.
func ExtractSenderName(text string) (first, last string) {
	m := senderNameRe.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	parts := strings.Fields(m[1])
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
