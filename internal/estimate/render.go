package estimate

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/manash/olive/internal/image"
	"github.com/manash/olive/pkg/models"
)

var ErrNoDesign = errors.New("no design result to export")

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"imgsrc": imageSource,
	"won":    FormatWon,
	"join":   strings.Join,
}).ParseFS(templateFS, "templates/*.html"))

// Sheet is the input of an estimate document.
type Sheet struct {
	Customer string
	Date     time.Time
	Rows     []models.EstimateRow
}

type sheetView struct {
	Customer string
	Date     string
	Pages    []Page
	Total    int64
}

// RenderEstimate writes the paginated estimate as a standalone HTML page.
func RenderEstimate(w io.Writer, s Sheet) error {
	return templates.ExecuteTemplate(w, "estimate.html", sheetView{
		Customer: strings.TrimSpace(s.Customer),
		Date:     koreanDate(s.Date),
		Pages:    Paginate(s.Rows, RowsPerPage),
		Total:    GrandTotal(s.Rows),
	})
}

// Construction is the input of a construction plan: the design shown to
// the client, what it is made of and what it costs.
type Construction struct {
	Customer        string
	Date            time.Time
	RoomDescription string
	StyleProfile    models.StyleProfile
	Design          models.DesignResult
	Rooms           []models.RoomEntry
	Materials       []models.Material
	Rows            []models.EstimateRow
}

// NewConstruction assembles a construction plan from a session. In multi
// mode the first room with a result is the headline design and every room
// is listed; otherwise the session result and design prompt are used.
func NewConstruction(s models.Session, date time.Time) (Construction, error) {
	if s.DesignResult == nil && len(s.Rooms) == 0 {
		return Construction{}, ErrNoDesign
	}

	c := Construction{
		Customer:  s.CustomerName,
		Date:      date,
		Materials: s.Materials,
		Rows:      s.EstimateRows,
	}
	if s.StyleProfile != nil {
		c.StyleProfile = *s.StyleProfile
	}

	if s.RoomMode == models.RoomModeMulti && len(s.Rooms) > 0 {
		names := make([]string, len(s.Rooms))
		found := false
		for i, r := range s.Rooms {
			names[i] = r.Name
			if r.DesignResult != nil && !found {
				c.Design = *r.DesignResult
				found = true
			}
		}
		c.RoomDescription = strings.Join(names, ", ")
		c.Rooms = s.Rooms
		return c, nil
	}

	if s.DesignResult != nil {
		c.Design = *s.DesignResult
	}
	c.RoomDescription = s.DesignPrompt
	return c, nil
}

type constructionView struct {
	Construction
	DateText string
	Lines    []Line
	Total    int64
}

func RenderConstruction(w io.Writer, c Construction) error {
	lines := []Line{}
	for _, p := range Paginate(c.Rows, len(c.Rows)) {
		lines = append(lines, p.Lines...)
	}
	c.Customer = strings.TrimSpace(c.Customer)
	return templates.ExecuteTemplate(w, "construction.html", constructionView{
		Construction: c,
		DateText:     koreanDate(c.Date),
		Lines:        lines,
		Total:        GrandTotal(c.Rows),
	})
}

// imageSource admits only well-formed image data URIs into src attributes.
func imageSource(uri string) template.URL {
	if _, _, err := image.ParseDataURI(uri); err != nil {
		return ""
	}
	return template.URL(uri)
}

func koreanDate(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("2006. 1. 2.")
}
