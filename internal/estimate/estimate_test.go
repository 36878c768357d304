package estimate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/manash/olive/pkg/models"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12,000원", "12000"},
		{"  3 400 ", "3400"},
		{"free", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePrice(tt.in); got != tt.want {
			t.Errorf("NormalizePrice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRowTotals(t *testing.T) {
	rows := []models.EstimateRow{
		{Name: "타일", Price: "12000", Qty: 3},
		{Name: "조명", Price: "", Qty: 2},
		{Name: "도배", Price: "50000", Qty: 0},
		{Name: "수전", Price: "89,000", Qty: 1},
	}
	wantRows := []int64{36000, 0, 0, 89000}
	for i, r := range rows {
		if got := RowTotal(r); got != wantRows[i] {
			t.Errorf("RowTotal(%s) = %d, want %d", r.Name, got, wantRows[i])
		}
	}
	if got := GrandTotal(rows); got != 125000 {
		t.Errorf("GrandTotal() = %d, want 125000", got)
	}
	if got := GrandTotal(nil); got != 0 {
		t.Errorf("GrandTotal(nil) = %d, want 0", got)
	}
}

func TestFormatWon(t *testing.T) {
	tests := map[int64]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567"}
	for in, want := range tests {
		if got := FormatWon(in); got != want {
			t.Errorf("FormatWon(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFromSearchItem(t *testing.T) {
	item := models.ShopItem{Title: "<b>원목</b> 식탁 &amp; 의자", LPrice: "159000"}
	row := FromSearchItem(item)
	if row.Name != "원목 식탁 & 의자" {
		t.Errorf("Name = %q", row.Name)
	}
	if row.Price != "159000" || row.Qty != 1 {
		t.Errorf("row = %+v", row)
	}

	if got := FromSearchItem(models.ShopItem{Title: "x"}).Price; got != "0" {
		t.Errorf("empty lprice = %q, want 0", got)
	}
}

func TestFilename(t *testing.T) {
	date := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		customer string
		want     string
	}{
		{"no customer", "", "견적서_2026-03-09.html"},
		{"blank customer", "   ", "견적서_2026-03-09.html"},
		{"plain", "김민지", "견적서_김민지_2026-03-09.html"},
		{"illegal chars", `a/b:c*d?"e"<f>|g\h`, "견적서_a_b_c_d__e__f__g_h_2026-03-09.html"},
		{"long", strings.Repeat("가", 60), "견적서_" + strings.Repeat("가", 50) + "_2026-03-09.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(EstimatePrefix, tt.customer, date); got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func makeRows(n int) []models.EstimateRow {
	rows := make([]models.EstimateRow, n)
	for i := range rows {
		rows[i] = models.EstimateRow{Name: fmt.Sprintf("item-%d", i+1), Price: "1000", Qty: 1}
	}
	return rows
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		wantPages int
		lastLines int
	}{
		{"empty", 0, 1, 0},
		{"one", 1, 1, 1},
		{"exact page", 14, 1, 14},
		{"spill", 15, 2, 1},
		{"three pages", 30, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := Paginate(makeRows(tt.rows), RowsPerPage)
			if len(pages) != tt.wantPages {
				t.Fatalf("pages = %d, want %d", len(pages), tt.wantPages)
			}
			for i, p := range pages {
				if p.Header != (i == 0) {
					t.Errorf("page %d Header = %v", i, p.Header)
				}
				if p.ShowTotal != (i == len(pages)-1) {
					t.Errorf("page %d ShowTotal = %v", i, p.ShowTotal)
				}
			}
			if got := len(pages[len(pages)-1].Lines); got != tt.lastLines {
				t.Errorf("last page lines = %d, want %d", got, tt.lastLines)
			}
		})
	}

	pages := Paginate(makeRows(15), RowsPerPage)
	if pages[1].Lines[0].No != 15 {
		t.Errorf("numbering restarted: %d", pages[1].Lines[0].No)
	}
}

func TestRenderEstimate(t *testing.T) {
	rows := makeRows(15)
	rows[0] = models.EstimateRow{Name: `<script>alert("x")</script>`, Price: "1200000", Qty: 2}

	var buf bytes.Buffer
	err := RenderEstimate(&buf, Sheet{Customer: " 홍길동 ", Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Rows: rows})
	if err != nil {
		t.Fatalf("RenderEstimate() error = %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "<script>") {
		t.Error("row name not escaped")
	}
	if strings.Count(out, "<h2>올리브디자인 견적서</h2>") != 1 {
		t.Error("header should appear once")
	}
	if strings.Count(out, "합계") != 1 {
		t.Error("total should appear once")
	}
	if !strings.Contains(out, "고객명: 홍길동") {
		t.Error("missing customer line")
	}
	if !strings.Contains(out, "2026. 1. 5.") {
		t.Error("missing date")
	}
	if !strings.Contains(out, "2,414,000원") {
		t.Errorf("missing grand total in output")
	}
	if strings.Count(out, `class="page page-break"`) != 1 {
		t.Error("expected exactly one page break")
	}
}

func TestRenderEstimate_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderEstimate(&buf, Sheet{}); err != nil {
		t.Fatalf("RenderEstimate() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "0원") || strings.Contains(out, "고객명") {
		t.Errorf("unexpected empty sheet output")
	}
}

const pixel = "data:image/png;base64,iVBORw0KGgo="

func TestNewConstruction(t *testing.T) {
	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if _, err := NewConstruction(models.DefaultSession(), date); !errors.Is(err, ErrNoDesign) {
		t.Errorf("empty session error = %v, want ErrNoDesign", err)
	}

	single := models.DefaultSession()
	single.DesignPrompt = "따뜻한 거실"
	single.DesignResult = &models.DesignResult{ImageBase64: pixel, Description: "single"}
	c, err := NewConstruction(single, date)
	if err != nil {
		t.Fatalf("NewConstruction(single) error = %v", err)
	}
	if c.RoomDescription != "따뜻한 거실" || c.Design.Description != "single" || c.Rooms != nil {
		t.Errorf("single construction = %+v", c)
	}

	multi := models.DefaultSession()
	multi.RoomMode = models.RoomModeMulti
	multi.Rooms = []models.RoomEntry{
		{ID: "a", Name: "거실"},
		{ID: "b", Name: "주방", DesignResult: &models.DesignResult{Description: "kitchen"}},
		{ID: "c", Name: "침실", DesignResult: &models.DesignResult{Description: "bedroom"}},
	}
	c, err = NewConstruction(multi, date)
	if err != nil {
		t.Fatalf("NewConstruction(multi) error = %v", err)
	}
	if c.RoomDescription != "거실, 주방, 침실" {
		t.Errorf("RoomDescription = %q", c.RoomDescription)
	}
	if c.Design.Description != "kitchen" {
		t.Errorf("Design = %q, want first room with a result", c.Design.Description)
	}
	if len(c.Rooms) != 3 {
		t.Errorf("Rooms = %d, want 3", len(c.Rooms))
	}
}

func TestRenderConstruction(t *testing.T) {
	s := models.DefaultSession()
	s.CustomerName = "이서준"
	s.StyleProfile = &models.StyleProfile{Style: "미니멀", Mood: "차분함", Colors: []string{"화이트", "오크"}}
	s.DesignResult = &models.DesignResult{ImageBase64: pixel, Description: "밝은 거실"}
	s.Materials = []models.Material{{Name: "원목 마루", Category: "바닥"}}
	s.EstimateRows = []models.EstimateRow{{Name: "마루", Price: "30000", Qty: 10}}

	c, err := NewConstruction(s, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	c.Design.ImageBase64 = pixel
	var buf bytes.Buffer
	if err := RenderConstruction(&buf, c); err != nil {
		t.Fatalf("RenderConstruction() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"이서준", "미니멀", "화이트, 오크", "원목 마루", "300,000원", `src="data:image/png;base64,`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestImageSource_RejectsNonDataURI(t *testing.T) {
	if got := imageSource("javascript:alert(1)"); got != "" {
		t.Errorf("imageSource() = %q, want empty", got)
	}
	if got := imageSource(pixel); string(got) != pixel {
		t.Errorf("imageSource() = %q", got)
	}
}
