package models

import (
	"errors"
	"slices"
)

var (
	ErrNoStyleProfile = errors.New("style profile required: run style analysis first")
	ErrNoDesignResult = errors.New("design result required: generate a design first")
	ErrNoRooms        = errors.New("at least one room is required")
	ErrRoomNotFound   = errors.New("room not found")
	ErrEmptyFeedback  = errors.New("feedback cannot be empty")
	ErrNoImages       = errors.New("at least one reference image is required")
	ErrTooManyImages  = errors.New("too many reference images")
)

// MaxUploads caps the reference images kept for style analysis.
const MaxUploads = 5

type RoomMode string

const (
	RoomModeSingle RoomMode = "single"
	RoomModeMulti  RoomMode = "multi"
)

func (m RoomMode) IsValid() bool {
	return m == RoomModeSingle || m == RoomModeMulti
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type StyleProfile struct {
	Colors    []string `json:"colors"`
	Materials []string `json:"materials"`
	Mood      string   `json:"mood"`
	Style     string   `json:"style" validate:"required"`
	Keywords  []string `json:"keywords"`
	Summary   string   `json:"summary"`
}

func (p *StyleProfile) Clone() *StyleProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Colors = slices.Clone(p.Colors)
	c.Materials = slices.Clone(p.Materials)
	c.Keywords = slices.Clone(p.Keywords)
	return &c
}

// DesignResult is one rendered design. Prompt is the text actually sent to
// the image model.
type DesignResult struct {
	ImageBase64 string `json:"imageBase64"`
	Description string `json:"description"`
	Prompt      string `json:"dallePrompt"`
}

func (r *DesignResult) Clone() *DesignResult {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

type DesignMessage struct {
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	ImageBase64 string `json:"imageBase64,omitempty"`
}

type DesignVariation struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	ImageBase64 string `json:"imageBase64"`
	Description string `json:"description"`
	DallePrompt string `json:"dallePrompt"`
}

type Material struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	SearchKeyword string `json:"searchKeyword"`
	EstimatedSpec string `json:"estimatedSpec"`
}

type RoomEntry struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Prompt         string            `json:"prompt"`
	DesignResult   *DesignResult     `json:"designResult"`
	DesignMessages []DesignMessage   `json:"designMessages"`
	Variations     []DesignVariation `json:"variations"`
	Materials      []Material        `json:"materials"`
}

func (r RoomEntry) Clone() RoomEntry {
	r.DesignResult = r.DesignResult.Clone()
	r.DesignMessages = slices.Clone(r.DesignMessages)
	r.Variations = slices.Clone(r.Variations)
	r.Materials = slices.Clone(r.Materials)
	return r
}

// EstimateRow is one priced line item. Price holds digits only.
type EstimateRow struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Qty   int    `json:"qty"`
}

// Session is the root aggregate of one design workflow. Empty ActiveRoomID
// and SelectedVariationID mean "none".
type Session struct {
	Step                int               `json:"step"`
	UploadedImages      []string          `json:"uploadedImages"`
	StyleText           string            `json:"styleText"`
	StyleProfile        *StyleProfile     `json:"styleProfile"`
	DesignPrompt        string            `json:"designPrompt"`
	RoomMode            RoomMode          `json:"roomMode"`
	Rooms               []RoomEntry       `json:"rooms"`
	ActiveRoomID        string            `json:"activeRoomId"`
	DesignResult        *DesignResult     `json:"designResult"`
	DesignMessages      []DesignMessage   `json:"designMessages"`
	Variations          []DesignVariation `json:"variations"`
	SelectedVariationID string            `json:"selectedVariationId"`
	Materials           []Material        `json:"materials"`
	EstimateRows        []EstimateRow     `json:"estimateRows"`
	CustomerName        string            `json:"customerName"`
}

func DefaultSession() Session {
	s := Session{Step: 1, RoomMode: RoomModeSingle}
	s.Normalize()
	return s
}

// Clone returns a deep copy. Reducers work on clones so that installed
// sessions never share backing arrays.
func (s Session) Clone() Session {
	c := s
	c.UploadedImages = slices.Clone(s.UploadedImages)
	c.StyleProfile = s.StyleProfile.Clone()
	c.DesignResult = s.DesignResult.Clone()
	c.DesignMessages = slices.Clone(s.DesignMessages)
	c.Variations = slices.Clone(s.Variations)
	c.Materials = slices.Clone(s.Materials)
	c.EstimateRows = slices.Clone(s.EstimateRows)
	if s.Rooms != nil {
		c.Rooms = make([]RoomEntry, len(s.Rooms))
		for i, r := range s.Rooms {
			c.Rooms[i] = r.Clone()
		}
	}
	return c
}

// Normalize replaces nil slices with empty ones, clamps Step into 1..5 and
// falls back to single mode for unknown room modes.
func (s *Session) Normalize() {
	if s.Step < 1 {
		s.Step = 1
	}
	if s.Step > 5 {
		s.Step = 5
	}
	if !s.RoomMode.IsValid() {
		s.RoomMode = RoomModeSingle
	}
	s.UploadedImages = orEmpty(s.UploadedImages)
	s.Rooms = orEmpty(s.Rooms)
	s.DesignMessages = orEmpty(s.DesignMessages)
	s.Variations = orEmpty(s.Variations)
	s.Materials = orEmpty(s.Materials)
	s.EstimateRows = orEmpty(s.EstimateRows)
	for i := range s.Rooms {
		s.Rooms[i].DesignMessages = orEmpty(s.Rooms[i].DesignMessages)
		s.Rooms[i].Variations = orEmpty(s.Rooms[i].Variations)
		s.Rooms[i].Materials = orEmpty(s.Rooms[i].Materials)
	}
	if s.StyleProfile != nil {
		s.StyleProfile.Colors = orEmpty(s.StyleProfile.Colors)
		s.StyleProfile.Materials = orEmpty(s.StyleProfile.Materials)
		s.StyleProfile.Keywords = orEmpty(s.StyleProfile.Keywords)
	}
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func (s *Session) Room(id string) (*RoomEntry, int) {
	for i := range s.Rooms {
		if s.Rooms[i].ID == id {
			return &s.Rooms[i], i
		}
	}
	return nil, -1
}

func (s *Session) ActiveRoom() *RoomEntry {
	if s.ActiveRoomID == "" {
		return nil
	}
	r, _ := s.Room(s.ActiveRoomID)
	return r
}

// DesignRequest is the input of one design generation or refinement call.
type DesignRequest struct {
	Prompt              string
	StyleProfile        StyleProfile
	Refinements         []string
	PreviousDescription string
}

// IsRefinement reports whether the call should modify a previous design
// rather than start fresh.
func (r DesignRequest) IsRefinement() bool {
	return len(r.Refinements) > 0 && r.PreviousDescription != ""
}

type VariationRequest struct {
	Description  string
	DallePrompt  string
	StyleProfile StyleProfile
	Count        int
}

type StyleRequest struct {
	Images []string
	Text   string
}

type MaterialRequest struct {
	ImageBase64 string
	Description string
}

type ShopItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Image       string `json:"image"`
	LPrice      string `json:"lprice"`
	MallName    string `json:"mallName"`
	ProductID   string `json:"productId"`
	ProductType string `json:"productType"`
	Brand       string `json:"brand"`
	Category1   string `json:"category1"`
	Category2   string `json:"category2"`
	Category3   string `json:"category3"`
}

type SearchQuery struct {
	Query   string
	Display int
	Start   int
	Sort    string
}

type SearchResult struct {
	Items []ShopItem `json:"items"`
	Total int        `json:"total"`
	Start int        `json:"start"`
}
