package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/manash/olive/internal/designer"
	"github.com/manash/olive/internal/image"
	"github.com/manash/olive/internal/provider"
	"github.com/manash/olive/pkg/models"
)

const (
	msgNoAnthropic  = "ANTHROPIC_API_KEY가 설정되지 않았습니다."
	msgNoOpenAI     = "OPENAI_API_KEY가 설정되지 않았습니다."
	msgNoNaver      = "네이버 API 키가 설정되지 않았습니다."
	msgNoImages     = "이미지를 1장 이상 업로드해주세요."
	msgNoPrompt     = "디자인 설명을 입력해주세요."
	msgNoDesign     = "디자인 결과가 필요합니다."
	msgNoDesignImg  = "디자인 이미지가 필요합니다."
	msgBadImage     = "잘못된 이미지 형식입니다."
	msgNoQuery      = "query를 입력하세요."
	msgInvalidInput = "잘못된 요청입니다."
)

type styleAnalyzeRequest struct {
	Images []string `json:"images"`
	Text   string   `json:"text"`
}

type designGenerateRequest struct {
	Prompt              string               `json:"prompt"`
	StyleProfile        *models.StyleProfile `json:"styleProfile"`
	Refinements         []string             `json:"refinements"`
	PreviousDescription string               `json:"previousDescription"`
}

type designResponse struct {
	ImageBase64 string `json:"imageBase64"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

type variationsRequest struct {
	Description  string               `json:"description"`
	DallePrompt  string               `json:"dallePrompt"`
	StyleProfile *models.StyleProfile `json:"styleProfile"`
	Count        int                  `json:"count"`
}

type materialsRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Description string `json:"description"`
}

// requireKeys rejects a request when a needed credential is missing. Every
// design route needs Anthropic; routes that render images also need OpenAI.
func (s *Server) requireKeys(renders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch {
		case !s.deps.Keys.Anthropic:
			abortError(c, http.StatusUnauthorized, msgNoAnthropic)
		case renders && !s.deps.Keys.OpenAI:
			abortError(c, http.StatusUnauthorized, msgNoOpenAI)
		case s.deps.Designer == nil:
			abortError(c, http.StatusServiceUnavailable, "designer is not configured")
		default:
			c.Next()
		}
	}
}

func (s *Server) handleStyleAnalyze(c *gin.Context) {
	var req styleAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if len(req.Images) == 0 {
		abortError(c, http.StatusBadRequest, msgNoImages)
		return
	}

	profile, err := s.deps.Designer.AnalyzeStyle(c.Request.Context(), models.StyleRequest{
		Images: req.Images,
		Text:   req.Text,
	})
	if err != nil {
		s.fail(c, "style analysis", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (s *Server) handleDesignGenerate(c *gin.Context) {
	var req designGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		abortError(c, http.StatusBadRequest, msgNoPrompt)
		return
	}

	dr := models.DesignRequest{
		Prompt:              req.Prompt,
		Refinements:         req.Refinements,
		PreviousDescription: req.PreviousDescription,
	}
	if req.StyleProfile != nil {
		dr.StyleProfile = *req.StyleProfile
	}
	res, err := s.deps.Designer.GenerateDesign(c.Request.Context(), dr)
	if err != nil {
		s.fail(c, "design generation", err)
		return
	}
	c.JSON(http.StatusOK, designResponse{
		ImageBase64: res.ImageBase64,
		Description: res.Description,
		Prompt:      res.Prompt,
	})
}

func (s *Server) handleDesignVariations(c *gin.Context) {
	var req variationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if strings.TrimSpace(req.Description) == "" && strings.TrimSpace(req.DallePrompt) == "" {
		abortError(c, http.StatusBadRequest, msgNoDesign)
		return
	}

	vr := models.VariationRequest{
		Description: req.Description,
		DallePrompt: req.DallePrompt,
		Count:       designer.ClampVariations(req.Count),
	}
	if req.StyleProfile != nil {
		vr.StyleProfile = *req.StyleProfile
	}
	vars, err := s.deps.Designer.GenerateVariations(c.Request.Context(), vr)
	if err != nil {
		s.fail(c, "variation generation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variations": vars})
}

func (s *Server) handleMaterialsExtract(c *gin.Context) {
	var req materialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if req.ImageBase64 == "" {
		abortError(c, http.StatusBadRequest, msgNoDesignImg)
		return
	}
	if _, _, err := image.ParseDataURI(req.ImageBase64); err != nil {
		abortError(c, http.StatusBadRequest, msgBadImage)
		return
	}

	mats, err := s.deps.Designer.ExtractMaterials(c.Request.Context(), models.MaterialRequest{
		ImageBase64: req.ImageBase64,
		Description: req.Description,
	})
	if err != nil {
		s.fail(c, "material extraction", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"materials": mats})
}

func (s *Server) handleNaverSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoQuery, "items": []models.ShopItem{}})
		return
	}
	if !s.deps.Keys.Naver || s.deps.Search == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgNoNaver, "items": []models.ShopItem{}})
		return
	}

	display, _ := strconv.Atoi(c.Query("display"))
	start, _ := strconv.Atoi(c.Query("start"))
	res, err := s.deps.Search.Search(c.Request.Context(), models.SearchQuery{
		Query:   query,
		Display: display,
		Start:   start,
		Sort:    c.Query("sort"),
	})
	if err != nil {
		s.logger.Warn("shopping search failed", "query", query, "error", err)
		c.JSON(statusFor(err), gin.H{"error": "요청 실패: " + err.Error(), "items": []models.ShopItem{}})
		return
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Keys)
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	s.logger.Warn("request failed", "op", op, "error", err)
	abortError(c, statusFor(err), err.Error())
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// statusFor maps collaborator errors onto HTTP statuses. Upstream status
// errors keep their code.
func statusFor(err error) int {
	var statusErr *provider.StatusError
	switch {
	case errors.Is(err, models.ErrNoImages),
		errors.Is(err, models.ErrTooManyImages),
		errors.Is(err, models.ErrEmptyPrompt),
		errors.Is(err, models.ErrNoDesignResult),
		errors.Is(err, image.ErrInvalidDataURI):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		return statusErr.Code
	case errors.Is(err, provider.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, provider.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
