package racecard

import (
	"regexp"
	"strings"
)

// Anchor-text capture tuned for the racecard sites the pipeline sees in
// practice: katakana/kanji names, latin names, 2-20 runes.
var nameCandidateRE = regexp.MustCompile(`>\s*([A-Za-z0-9\x{3040}-\x{30FF}\x{4E00}-\x{9FFF}()・\-\s]{2,20})\s*<`)

var digitsOnlyRE = regexp.MustCompile(`^\d+$`)

// bannedLabels are common racecard UI strings that match the name pattern
// but are never horse names.
var bannedLabels = map[string]struct{}{
	"出馬表": {}, "予想": {}, "結果": {}, "オッズ": {},
	"馬名": {}, "騎手": {}, "斤量": {}, "調教師": {},
	"性齢": {}, "人気": {}, "単勝": {}, "複勝": {}, "タイム": {},
}

// extractNames pulls candidate horse names out of racecard HTML. Best
// effort by construction: it filters obvious non-names and deduplicates
// while preserving page order.
func extractNames(html string) []string {
	matches := nameCandidateRE.FindAllStringSubmatch(html, -1)

	seen := make(map[string]struct{}, len(matches))
	var names []string
	for _, m := range matches {
		name := strings.Join(strings.Fields(m[1]), " ")
		if len([]rune(name)) < 2 {
			continue
		}
		if _, banned := bannedLabels[name]; banned {
			continue
		}
		if digitsOnlyRE.MatchString(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
		if len(names) >= maxEntrants {
			break
		}
	}
	return names
}
