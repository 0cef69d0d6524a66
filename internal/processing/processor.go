package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"dan": {}, "di": {}, "ke": {}, "dari": {}, "yang": {}, "pada": {},
	"terhadap": {}, "dengan": {}, "untuk": {}, "dalam": {}, "atau": {},
	"studi": {}, "kasus": {}, "pengaruh": {}, "analisis": {},
	"the": {}, "of": {}, "and": {}, "in": {}, "on": {}, "for": {},
}

// CollapseSpace decodes HTML entities, squeezes whitespace and trims.
func CollapseSpace(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	return strings.TrimSpace(whitespace.ReplaceAllString(decoded, " "))
}

// CleanText strips punctuation on top of CollapseSpace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	return CollapseSpace(decoded)
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	n := limit
	if n <= 0 || n > len(pairs) {
		n = len(pairs)
	}

	keywords := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return keywords
}

// NormalizeRecord collapses whitespace in every text field and stores the
// most frequent title and variables tokens in DerivedKeywords. Keywords is
// left as supplied.
func NormalizeRecord(rec models.ThesisRecord, keywordLimit, keywordMinLen int) models.ThesisRecord {
	rec.Title = CollapseSpace(rec.Title)
	rec.Program = CollapseSpace(rec.Program)
	rec.Variables = CollapseSpace(rec.Variables)
	rec.Method = CollapseSpace(rec.Method)
	rec.Object = CollapseSpace(rec.Object)
	rec.Location = CollapseSpace(rec.Location)
	rec.Keywords = CollapseSpace(rec.Keywords)
	rec.Source = strings.TrimSpace(rec.Source)

	rec.DerivedKeywords = ""
	if keywordLimit > 0 {
		derived := ExtractKeywords(rec.Title+" "+rec.Variables, keywordLimit, keywordMinLen)
		rec.DerivedKeywords = strings.Join(derived, ", ")
	}
	return rec
}

// BuildRecordID hashes the identifying fields to form deterministic IDs, so
// re-importing the same export overwrites instead of duplicating.
func BuildRecordID(rec models.ThesisRecord) string {
	year := ""
	if rec.Year != nil {
		year = strconv.Itoa(*rec.Year)
	}
	key := strings.ToLower(strings.Join([]string{rec.Source, rec.Title, year, rec.Program}, "|"))
	s := sha1.Sum([]byte(key))
	return hex.EncodeToString(s[:])
}

// ContentHash fingerprints every stored field of a record, so two
// deliveries with the same ID but corrected values hash differently.
func ContentHash(rec models.ThesisRecord) string {
	year := ""
	if rec.Year != nil {
		year = strconv.Itoa(*rec.Year)
	}
	key := strings.Join([]string{
		rec.ID, strconv.FormatInt(rec.Seq, 10), rec.Source, rec.Title, year, rec.Program,
		rec.Variables, rec.Method, rec.Object, rec.Location, rec.Keywords,
	}, "\x1f")
	s := sha1.Sum([]byte(key))
	return hex.EncodeToString(s[:])
}
