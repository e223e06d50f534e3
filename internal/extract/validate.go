package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// validator accepts or rejects a candidate value.
type validator func(string) bool

var junkWords = map[string]bool{
	"information": true, "details": true, "section": true, "data": true,
	"summary": true, "n/a": true, "na": true, "none": true, "null": true,
	"tbd": true, "---": true, "===": true,
}

// Words typical of table column headers.
var headerWords = map[string]bool{
	"carrier": true, "mc": true, "phone": true, "equipment": true, "agreed": true,
	"amount": true, "size": true, "feet": true, "column": true, "field": true,
	"value": true, "type": true, "name": true, "address": true, "city": true,
	"state": true, "zip": true, "contact": true, "email": true, "fax": true,
}

var dashOnlyRe = regexp.MustCompile(`^[\s\-]+$`)

// isJunk reports whether v looks like a section label, placeholder or table
// header rather than data.
func isJunk(v string) bool {
	t := strings.TrimSpace(v)
	if utf8.RuneCountInString(t) < 2 {
		return true
	}
	if junkWords[strings.ToLower(t)] {
		return true
	}
	if strings.HasPrefix(v, "---") || strings.HasPrefix(v, "===") {
		return true
	}
	if dashOnlyRe.MatchString(v) {
		return true
	}
	if strings.Count(v, "|") >= 2 {
		return true
	}

	distinct := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(t)) {
		distinct[w] = true
	}
	hits := 0
	for w := range distinct {
		if headerWords[w] {
			hits++
		}
	}
	return hits >= 3 && len(distinct) >= 4
}

func notJunk(v string) bool { return !isJunk(v) }

// maxWords rejects junk and values longer than n words.
func maxWords(n int) validator {
	return func(v string) bool {
		return !isJunk(v) && len(strings.Fields(v)) <= n
	}
}

// plausibleRate accepts amounts strictly between 10 and 1,000,000.
func plausibleRate(v string) bool {
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	return err == nil && f > 10 && f < 1_000_000
}

// plausibleWeight accepts "<number> <unit>" with a number of at least 50.
func plausibleWeight(v string) bool {
	num, _, _ := strings.Cut(v, " ")
	f, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	return err == nil && f >= 50
}

func anyValue(v string) bool { return strings.TrimSpace(v) != "" }
