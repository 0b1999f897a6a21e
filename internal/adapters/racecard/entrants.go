package racecard

import (
	"regexp"
	"strconv"
	"strings"
)

// Entrant is one declared field member from free-text entrants input.
type Entrant struct {
	Name   string
	Rating float64
}

const (
	defaultRating = 50.0
	minRating     = 30.0
	maxRating     = 90.0

	// maxEntrants caps how many field members one race can declare.
	maxEntrants = 40
)

var (
	bulletRE      = regexp.MustCompile(`^[-*•\s]+`)
	trailingNumRE = regexp.MustCompile(`^(.*?)\s+(\d{1,3}(?:\.\d+)?)$`)
	nonNumericRE  = regexp.MustCompile(`[^0-9.\-]`)
)

// ParseEntrants extracts entrants from free text, one per line. Supported
// line shapes: a bare name, "name: 62", "name, 62" and "name 62". Missing
// ratings default to 50; declared ratings clamp into [30, 90]. Full-width
// separators are normalized first.
func ParseEntrants(text string) []Entrant {
	if text == "" {
		return nil
	}

	var out []Entrant
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.NewReplacer("，", ",", "：", ":").Replace(line)
		line = bulletRE.ReplaceAllString(line, "")

		name := line
		rating := -1.0

		if i := strings.Index(line, ","); i >= 0 {
			if n, r, ok := splitNameRating(line[:i], line[i+1:]); ok {
				name, rating = n, r
			}
		}
		if i := strings.Index(line, ":"); i >= 0 {
			if n, r, ok := splitNameRating(line[:i], line[i+1:]); ok {
				name, rating = n, r
			}
		}
		if m := trailingNumRE.FindStringSubmatch(line); m != nil {
			if r, err := strconv.ParseFloat(m[2], 64); err == nil {
				name, rating = strings.TrimSpace(m[1]), r
			}
		}

		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if rating < 0 {
			rating = defaultRating
		}
		out = append(out, Entrant{Name: name, Rating: clampRating(rating)})
		if len(out) >= maxEntrants {
			break
		}
	}
	return out
}

func splitNameRating(name, rest string) (string, float64, bool) {
	name = strings.TrimSpace(name)
	rest = nonNumericRE.ReplaceAllString(strings.TrimSpace(rest), "")
	if name == "" || rest == "" {
		return "", 0, false
	}
	rating, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return "", 0, false
	}
	return name, rating, true
}

func clampRating(r float64) float64 {
	if r < minRating {
		return minRating
	}
	if r > maxRating {
		return maxRating
	}
	return r
}
