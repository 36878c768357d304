// Package estimate prices estimate rows and renders the printable estimate
// and construction documents.
package estimate

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/manash/olive/internal/provider/naver"
	"github.com/manash/olive/internal/security"
	"github.com/manash/olive/pkg/models"
)

const (
	RowsPerPage = 14

	// EstimatePrefix and ConstructionPrefix start export file names.
	EstimatePrefix     = "견적서"
	ConstructionPrefix = "시공계획서"

	maxCustomerRunes = 50
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// NormalizePrice keeps the digits of s. Unlike search prices an empty
// result stays empty so a cleared price cell reads as unset.
func NormalizePrice(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UnitPrice parses the row price; anything unparsable counts as zero.
func UnitPrice(r models.EstimateRow) int64 {
	p, err := strconv.ParseInt(NormalizePrice(r.Price), 10, 64)
	if err != nil {
		return 0
	}
	return p
}

func RowTotal(r models.EstimateRow) int64 {
	if r.Qty <= 0 {
		return 0
	}
	return UnitPrice(r) * int64(r.Qty)
}

func GrandTotal(rows []models.EstimateRow) int64 {
	var total int64
	for _, r := range rows {
		total += RowTotal(r)
	}
	return total
}

// FormatWon renders n with thousands separators, e.g. 1,234,000.
func FormatWon(n int64) string {
	return humanize.Comma(n)
}

// FromSearchItem turns a shopping hit into a single-quantity row.
func FromSearchItem(item models.ShopItem) models.EstimateRow {
	return models.EstimateRow{
		Name:  StripTags(item.Title),
		Price: naver.DigitsOnly(item.LPrice),
		Qty:   1,
	}
}

// StripTags removes markup such as the <b> highlight the search API wraps
// around matched terms, and unescapes entities.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

// Filename builds "<prefix>_<customer>_<YYYY-MM-DD>.html", omitting the
// customer part when the name is blank.
func Filename(prefix, customer string, date time.Time) string {
	day := date.Format("2006-01-02")
	safe := security.FilenamePart(customer, maxCustomerRunes)
	if safe == "" {
		return fmt.Sprintf("%s_%s.html", prefix, day)
	}
	return fmt.Sprintf("%s_%s_%s.html", prefix, safe, day)
}

// Line is one priced row as printed, with its 1-based position in the
// whole sheet.
type Line struct {
	No        int
	Name      string
	UnitPrice string
	Qty       int
	Total     string
}

// Page is one printed page. Header is set on the first page only and
// ShowTotal on the last only.
type Page struct {
	Header    bool
	Lines     []Line
	ShowTotal bool
}

// Paginate splits rows into pages of perPage lines. An empty sheet still
// yields one page carrying the header and the total.
func Paginate(rows []models.EstimateRow, perPage int) []Page {
	if perPage < 1 {
		perPage = RowsPerPage
	}
	if len(rows) == 0 {
		return []Page{{Header: true, Lines: []Line{}, ShowTotal: true}}
	}

	var pages []Page
	for start := 0; start < len(rows); start += perPage {
		end := min(start+perPage, len(rows))
		lines := make([]Line, 0, end-start)
		for i := start; i < end; i++ {
			r := rows[i]
			qty := max(r.Qty, 0)
			lines = append(lines, Line{
				No:        i + 1,
				Name:      r.Name,
				UnitPrice: FormatWon(UnitPrice(r)),
				Qty:       qty,
				Total:     FormatWon(RowTotal(r)),
			})
		}
		pages = append(pages, Page{
			Header:    start == 0,
			Lines:     lines,
			ShowTotal: end >= len(rows),
		})
	}
	return pages
}
