package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// document is the text under extraction in the forms the matchers need.
type document struct {
	raw        string
	clean      string // concatenation artifacts split apart
	lines      []string
	cleanLines []string
}

// Text-extraction artifacts where a value runs into the next label.
var cleanups = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(FTL|LTL)(Shipping|Delivery|Ship)`), "${1} ${2}"},
	{regexp.MustCompile(`(\d)(USD|CAD|EUR|GBP|MXN)`), "${1} ${2}"},
	{regexp.MustCompile(`(USD|CAD|EUR|GBP|MXN)(Pickup|Drop)`), "${1} ${2}"},
	{regexp.MustCompile(`([\w.+-]+@[\w-]+(?:\.[a-z]+)+?)(Dispatcher|Load)`), "${1} ${2}"},
}

func newDocument(text string) *document {
	raw := strings.ReplaceAll(text, "\r\n", "\n")
	clean := raw
	for _, c := range cleanups {
		clean = c.re.ReplaceAllString(clean, c.repl)
	}
	return &document{
		raw:        raw,
		clean:      clean,
		lines:      strings.Split(raw, "\n"),
		cleanLines: strings.Split(clean, "\n"),
	}
}

// matcher proposes a candidate value for a field.
type matcher func(d *document) (string, bool)

// rule is one entry of the pattern library. Rules are tried in order and
// the first candidate a rule's validator accepts wins its field.
type rule struct {
	field string
	match matcher
	valid validator
}

// Longest value kept per field; others default to maxValueLen.
var fieldLimits = map[string]int{
	FieldShipper:       100,
	FieldConsignee:     100,
	FieldCarrierName:   100,
	FieldEquipmentType: 50,
}

const maxValueLen = 150

// extractPatterns runs the rule library over text.
func extractPatterns(text string) Shipment {
	d := newDocument(text)
	values := make(map[string]string, len(Fields))
	for _, r := range rules {
		if _, done := values[r.field]; done {
			continue
		}
		v, ok := r.match(d)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if !r.valid(v) {
			continue
		}
		limit, ok := fieldLimits[r.field]
		if !ok {
			limit = maxValueLen
		}
		values[r.field] = truncateRunes(v, limit)
	}
	return newShipment(values)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// source selects which form of the document a matcher reads.
type source int

const (
	srcRaw source = iota
	srcClean
)

func (d *document) text(src source) string {
	if src == srcClean {
		return d.clean
	}
	return d.raw
}

func (d *document) linesOf(src source) []string {
	if src == srcClean {
		return d.cleanLines
	}
	return d.lines
}

// label matches `Label: value` and returns the first capture group.
func label(src source, pattern string) matcher {
	re := regexp.MustCompile(`(?i)` + pattern)
	return func(d *document) (string, bool) {
		m := re.FindStringSubmatch(d.text(src))
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// amount is label for money: thousands separators are removed.
func amount(pattern string) matcher {
	inner := label(srcRaw, pattern)
	return func(d *document) (string, bool) {
		v, ok := inner(d)
		return strings.ReplaceAll(v, ",", ""), ok
	}
}

// weight matches a number and a unit and returns "<number> <unit>".
func weight(pattern string) matcher {
	re := regexp.MustCompile(`(?i)` + pattern)
	return func(d *document) (string, bool) {
		m := re.FindStringSubmatch(d.raw)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[1]) + " " + strings.TrimSpace(m[2]), true
	}
}

var (
	nameLineRe = regexp.MustCompile(`(?i)^(?:name|company)\s*:\s*(.+)`)
	subLabelRe = regexp.MustCompile(`(?i)^(?:address|contact|phone|email|fax|city|state|zip)\s*:`)
)

// nextValueLine returns the first data line within window lines after start,
// skipping blanks, separators, junk and address-style sub-labels.
func nextValueLine(lines []string, start, window int) (string, bool) {
	for j := start + 1; j <= start+window && j < len(lines); j++ {
		c := strings.TrimSpace(lines[j])
		if c == "" || strings.HasPrefix(c, "---") || strings.HasPrefix(c, "===") || isJunk(c) {
			continue
		}
		if m := nameLineRe.FindStringSubmatch(c); m != nil {
			return strings.TrimSpace(m[1]), true
		}
		if subLabelRe.MatchString(c) {
			continue
		}
		return c, true
	}
	return "", false
}

// header finds the first line matching pattern and reads the value below it.
func header(src source, pattern string, window int) matcher {
	re := regexp.MustCompile(`(?i)` + pattern)
	return func(d *document) (string, bool) {
		lines := d.linesOf(src)
		for i, line := range lines {
			if re.MatchString(strings.TrimSpace(line)) {
				return nextValueLine(lines, i, window)
			}
		}
		return "", false
	}
}

// trailingHeader handles a section label glued to the end of the previous
// line, as in "...USD Pickup".
func trailingHeader(pattern string, window int) matcher {
	re := regexp.MustCompile(pattern)
	return func(d *document) (string, bool) {
		for i, line := range d.cleanLines {
			if re.MatchString(strings.TrimSpace(line)) {
				return nextValueLine(d.cleanLines, i, window)
			}
		}
		return "", false
	}
}

var (
	bolHeaderRe    = regexp.MustCompile(`(?i)^shipper\s+(?:consignee|receiver)`)
	bolShipperRe   = regexp.MustCompile(`^(?:\d+\.)?\s*(.+?)\s*[,;]?\s*$`)
	bolConsigneeRe = regexp.MustCompile(`USA\d*\.?\s*(.+?)(?:\s*,\s*$|\s*$)`)
)

// bolShipper reads the shipper from a "Shipper Consignee" two-column BOL
// row: the first value on the line below the header.
func bolShipper(d *document) (string, bool) {
	for i, line := range d.lines {
		if !bolHeaderRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		if i+1 >= len(d.lines) {
			return "", false
		}
		m := bolShipperRe.FindStringSubmatch(strings.TrimSpace(d.lines[i+1]))
		if m == nil {
			return "", false
		}
		return strings.TrimRight(strings.TrimSpace(m[1]), ","), true
	}
	return "", false
}

// bolConsignee reads the consignee from the same layout: the value that
// follows the shipper's "..., USA" address.
func bolConsignee(d *document) (string, bool) {
	for i, line := range d.lines {
		if !bolHeaderRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		for j := i + 1; j < i+5 && j < len(d.lines); j++ {
			m := bolConsigneeRe.FindStringSubmatch(d.lines[j])
			if m == nil {
				continue
			}
			if v := strings.TrimRight(strings.TrimSpace(m[1]), ","); utf8.RuneCountInString(v) > 1 {
				return v, true
			}
		}
		return "", false
	}
	return "", false
}

const datePattern = `(?:\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|\w+\s+\d{1,2},?\s+\d{4}|\d{4}-\d{2}-\d{2})`

var dateRe = regexp.MustCompile(datePattern)

// dateLabel matches a date right after a label, on the cleaned text.
func dateLabel(prefix string) matcher {
	return label(srcClean, prefix+`\s*:?\s*(`+datePattern+`)`)
}

// dateNear scans for a line mentioning context and takes the first date on
// it or on the line after it.
func dateNear(context string) matcher {
	re := regexp.MustCompile(`(?i)` + context)
	return func(d *document) (string, bool) {
		for i, line := range d.lines {
			if !re.MatchString(line) {
				continue
			}
			if m := dateRe.FindString(line); m != "" {
				return m, true
			}
			if i+1 < len(d.lines) {
				if m := dateRe.FindString(d.lines[i+1]); m != "" {
					return m, true
				}
			}
		}
		return "", false
	}
}

type keyword struct{ needle, value string }

// keywords returns the value of the first needle found. Needles are matched
// against the lower-cased cleaned text, or the upper-cased one when upper
// is set.
func keywords(upper bool, table ...keyword) matcher {
	return func(d *document) (string, bool) {
		hay := strings.ToLower(d.clean)
		if upper {
			hay = strings.ToUpper(d.clean)
		}
		for _, k := range table {
			if strings.Contains(hay, k.needle) {
				return k.value, true
			}
		}
		return "", false
	}
}

var dollarRe = regexp.MustCompile(`\$\s*([\d,]+\.\d{2})`)

// largestDollarAmount picks the largest plausible "$x.xx" in the text.
func largestDollarAmount(d *document) (string, bool) {
	best := 0.0
	for _, m := range dollarRe.FindAllStringSubmatch(d.raw, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || v <= 10 || v >= 1_000_000 {
			continue
		}
		best = max(best, v)
	}
	if best == 0 {
		return "", false
	}
	return fmt.Sprintf("%.2f", best), true
}

var currencyCodeRe = regexp.MustCompile(`\b(USD|CAD|EUR|GBP|MXN)\b`)

// currencyCode returns the first explicit ISO code in the text.
func currencyCode(d *document) (string, bool) {
	if m := currencyCodeRe.FindString(strings.ToUpper(d.clean)); m != "" {
		return m, true
	}
	return "", false
}

// currencySymbol maps the first known currency symbol to its code.
func currencySymbol(d *document) (string, bool) {
	for _, s := range []keyword{{"$", "USD"}, {"€", "EUR"}, {"£", "GBP"}} {
		if strings.Contains(d.raw, s.needle) {
			return s.value, true
		}
	}
	return "", false
}

var (
	carrierHeaderRe = regexp.MustCompile(`(?i)^carrier\s*(?:information|details)\s*$`)
	carrierRowRe    = regexp.MustCompile(`^(.+?)\s+(?:MC[\-\s]?\d|\(\d{3}\)|\$\d)`)
	wideGapRe       = regexp.MustCompile(`\s{2,}`)
)

// carrierFromRow takes the company name from a carrier table row, cutting
// at the MC number, phone number or amount that follows it.
func carrierFromRow(row string) (string, bool) {
	if isJunk(row) {
		return "", false
	}
	if m := carrierRowRe.FindStringSubmatch(row); m != nil {
		if name := strings.TrimSpace(m[1]); utf8.RuneCountInString(name) > 2 && !isJunk(name) {
			return name, true
		}
	}
	if first := strings.TrimSpace(wideGapRe.Split(row, 2)[0]); utf8.RuneCountInString(first) > 2 && !isJunk(first) {
		return first, true
	}
	if len(strings.Fields(row)) <= 6 {
		return row, true
	}
	return "", false
}

// carrierTable reads the first data row under a "Carrier Details" header.
func carrierTable(d *document) (string, bool) {
	for i, line := range d.lines {
		if !carrierHeaderRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		for j := i + 1; j < i+5 && j < len(d.lines); j++ {
			c := strings.TrimSpace(d.lines[j])
			if c == "" || isJunk(c) {
				continue
			}
			return carrierFromRow(c)
		}
		return "", false
	}
	return "", false
}

var transportCompanyRe = regexp.MustCompile(`(?i)transportation\s+company`)

// transportCompany reads the line below a BOL "Transportation Company" label.
func transportCompany(d *document) (string, bool) {
	for i, line := range d.lines {
		if !transportCompanyRe.MatchString(line) {
			continue
		}
		if i+1 < len(d.lines) {
			if c := strings.TrimSpace(d.lines[i+1]); c != "-" {
				return c, true
			}
		}
		return "", false
	}
	return "", false
}

const idValue = `([A-Za-z0-9][\w\-]{2,25})`

const lineValue = `\s*:\s*(.+?)(?:\n|$)`

const moneyValue = `\s*[:=]?\s*\$?\s*([\d,]+\.?\d{0,2})`

// rules is the ordered pattern library.
var rules = []rule{
	// shipment id
	{FieldShipmentID, label(srcRaw, `(?:reference|ref)\s*id\s*:?\s*`+idValue), notJunk},
	{FieldShipmentID, label(srcRaw, `load\s*id\s*:?\s*`+idValue), notJunk},
	{FieldShipmentID, label(srcRaw, `shipment\s*(?:id|#|no\.?|number)\s*:?\s*`+idValue), notJunk},
	{FieldShipmentID, label(srcRaw, `load\s*(?:#|no\.?|number)\s*:?\s*`+idValue), notJunk},
	{FieldShipmentID, label(srcRaw, `(?:bol|pro)\s*(?:#|no\.?|number)\s*:?\s*`+idValue), notJunk},
	{FieldShipmentID, label(srcRaw, `confirmation\s*(?:#|no\.?|number)\s*:?\s*`+idValue), notJunk},
	{FieldShipmentID, label(srcRaw, `order\s*(?:id|#|no\.?|number)\s*:?\s*`+idValue), notJunk},
	{FieldShipmentID, label(srcClean, `(?:reference|ref)\s*id\s*:?\s*`+idValue), notJunk},
	{FieldShipmentID, label(srcClean, `load\s*id\s*:?\s*`+idValue), notJunk},

	// shipper
	{FieldShipper, label(srcRaw, `shipper\s*(?:name)?`+lineValue), notJunk},
	{FieldShipper, label(srcRaw, `ship\s+from`+lineValue), notJunk},
	{FieldShipper, label(srcRaw, `origin\s*(?:name|company)?`+lineValue), notJunk},
	{FieldShipper, label(srcRaw, `pick\s*-?\s*up\s+(?:location|company|name)`+lineValue), notJunk},
	{FieldShipper, header(srcRaw, `^(?:shipper|ship\s+from|origin)\s*(?:information|details)?\s*$`, 5), notJunk},
	{FieldShipper, header(srcClean, `^pickup\s*$`, 3), notJunk},
	{FieldShipper, trailingHeader(`Pickup\s*$`, 3), notJunk},
	{FieldShipper, bolShipper, notJunk},

	// consignee
	{FieldConsignee, label(srcRaw, `consignee\s*(?:name)?`+lineValue), notJunk},
	{FieldConsignee, label(srcRaw, `ship\s+to`+lineValue), notJunk},
	{FieldConsignee, label(srcRaw, `deliver\s+to`+lineValue), notJunk},
	{FieldConsignee, label(srcRaw, `receiver\s*(?:name)?`+lineValue), notJunk},
	{FieldConsignee, label(srcRaw, `destination\s*(?:name|company)?`+lineValue), notJunk},
	{FieldConsignee, header(srcRaw, `^(?:consignee|ship\s+to|deliver\s+to|receiver|destination)\s*(?:information|details)?\s*$`, 5), notJunk},
	{FieldConsignee, header(srcRaw, `^drop\s*(?:off)?\s*$`, 3), notJunk},
	{FieldConsignee, bolConsignee, notJunk},

	// dates
	{FieldPickupDatetime, dateLabel(`(?:shipping|pickup|pick[\s-]*up)\s*date`), notJunk},
	{FieldPickupDatetime, dateLabel(`ship\s*date`), notJunk},
	{FieldPickupDatetime, dateLabel(`pickup\s*(?:date|time|dt)?`), notJunk},
	{FieldPickupDatetime, dateLabel(`loading\s*(?:date|time)?`), notJunk},
	{FieldPickupDatetime, dateLabel(`earliest\s*pick\s*-?\s*up`), notJunk},
	{FieldDeliveryDatetime, dateLabel(`deliver(?:y)?\s*date`), notJunk},
	{FieldDeliveryDatetime, dateLabel(`drop[\s-]*off\s*(?:date|time)?`), notJunk},
	{FieldDeliveryDatetime, dateLabel(`latest\s*delivery?`), notJunk},
	{FieldDeliveryDatetime, dateLabel(`(?:must|due|expected)\s*(?:deliver|arrival)`), notJunk},
	{FieldPickupDatetime, dateNear(`pick[\s-]*up|origin|loading|shipping\s*date|ship\s*date`), notJunk},
	{FieldDeliveryDatetime, dateNear(`deliver|destination|drop[\s-]*off`), notJunk},

	// equipment
	{FieldEquipmentType, label(srcRaw, `equipment\s*(?:type)?`+lineValue), notJunk},
	{FieldEquipmentType, label(srcRaw, `trailer\s*(?:type|size)?`+lineValue), notJunk},
	{FieldEquipmentType, label(srcRaw, `truck\s*(?:type)?`+lineValue), notJunk},
	{FieldEquipmentType, keywords(false,
		keyword{"53' dry van", "53' Dry Van"}, keyword{"48' dry van", "48' Dry Van"},
		keyword{"53' reefer", "53' Reefer"}, keyword{"48' reefer", "48' Reefer"},
		keyword{"53ft", "53' Trailer"}, keyword{"48ft", "48' Trailer"},
		keyword{"dry van", "Dry Van"}, keyword{"reefer", "Reefer"},
		keyword{"flatbed", "Flatbed"}, keyword{"step deck", "Step Deck"},
		keyword{"tanker", "Tanker"}, keyword{"container", "Container"},
		keyword{"box truck", "Box Truck"}, keyword{"sprinter", "Sprinter Van"},
	), anyValue},

	// mode
	{FieldMode, label(srcRaw, `mode`+lineValue), notJunk},
	{FieldMode, label(srcRaw, `transportation\s*mode`+lineValue), notJunk},
	{FieldMode, label(srcRaw, `service\s*(?:type|mode)`+lineValue), notJunk},
	{FieldMode, label(srcRaw, `load\s*type\s*:?\s*\n?\s*(FTL|LTL|INTERMODAL)`), notJunk},
	{FieldMode, keywords(true,
		keyword{"FULL TRUCKLOAD", "FTL"}, keyword{"FTL", "FTL"},
		keyword{"LESS THAN TRUCKLOAD", "LTL"}, keyword{"LESS-THAN-TRUCKLOAD", "LTL"}, keyword{"LTL", "LTL"},
		keyword{"INTERMODAL", "Intermodal"}, keyword{"DRAYAGE", "Drayage"},
		keyword{"AIR FREIGHT", "Air Freight"}, keyword{"OCEAN", "Ocean"},
		keyword{"PARTIAL", "Partial"},
	), anyValue},

	// rate
	{FieldRate, amount(`(?:carrier\s*pay\s*)?total\s*[:=]?\s*\$?\s*([\d,]+\.?\d{0,2})\s*USD`), plausibleRate},
	{FieldRate, amount(`total\s*(?:rate|charges?|due|amount|cost)` + moneyValue), plausibleRate},
	{FieldRate, amount(`(?:agreed|contracted|all[\s-]*in)\s*(?:rate|amount|price)` + moneyValue), plausibleRate},
	{FieldRate, amount(`total\s*(?:due)?` + moneyValue), plausibleRate},
	{FieldRate, amount(`line\s*haul\s*(?:rate)?` + moneyValue), plausibleRate},
	{FieldRate, amount(`(?:freight\s+)?rate` + moneyValue), plausibleRate},
	{FieldRate, amount(`amount\s*[:=]?\s*\$\s*([\d,]+\.?\d{0,2})`), plausibleRate},
	{FieldRate, amount(`(?:agreed\s+)?amount\s*\(USD\)\s*.*?\$?\s*([\d,]+\.?\d{0,2})`), plausibleRate},
	{FieldRate, largestDollarAmount, plausibleRate},

	// currency
	{FieldCurrency, currencyCode, anyValue},
	{FieldCurrency, currencySymbol, anyValue},

	// weight
	{FieldWeight, weight(`(?:gross\s+|total\s+)?weight\s*:?\s*([\d,]+\.?\d*)\s*(lbs?|kg|tons?|pounds?)`), plausibleWeight},
	{FieldWeight, weight(`([\d,]+\.?\d+)\s*(lbs?|pounds?)`), plausibleWeight},
	{FieldWeight, weight(`([\d,]{3,})\s*(lbs?|pounds?)`), plausibleWeight},

	// carrier
	{FieldCarrierName, label(srcRaw, `carrier\s*name`+lineValue), maxWords(8)},
	{FieldCarrierName, label(srcRaw, `trucking\s*(?:company|co\.?)`+lineValue), maxWords(8)},
	{FieldCarrierName, label(srcRaw, `transport(?:ation)?\s*(?:company|provider)`+lineValue), maxWords(8)},
	{FieldCarrierName, carrierTable, notJunk},
	{FieldCarrierName, transportCompany, notJunk},
}
