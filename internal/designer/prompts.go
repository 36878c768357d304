package designer

import (
	"fmt"
	"strings"

	"github.com/manash/olive/pkg/models"
)

const stylePrompt = `당신은 전문 인테리어 디자이너입니다. 첨부된 인테리어 레퍼런스 사진을 분석하여 스타일 프로필을 JSON으로 작성해주세요.%s

반드시 아래 JSON 형식으로만 응답하세요 (마크다운 코드블록 없이 순수 JSON만):
{
  "colors": ["#hex1", "#hex2", ...],
  "materials": ["자재1", "자재2", ...],
  "mood": "무드 설명 (한국어, 1문장)",
  "style": "스타일명 (예: 내추럴 모던, 미니멀, 북유럽 등)",
  "keywords": ["키워드1", "키워드2", ...],
  "summary": "전체적인 스타일 요약 (한국어, 2-3문장)"
}

colors: 사진에서 주요 색상 3-6개를 hex 코드로
materials: 사용된 주요 자재 (예: 원목, 대리석, 타일, 린넨 등)
mood: 전체적인 분위기
style: 인테리어 스타일 분류
keywords: 특징 키워드 5-8개
summary: 요약 설명`

func buildStylePrompt(text string) string {
	extra := ""
	if strings.TrimSpace(text) != "" {
		extra = "\n\n사용자 추가 설명: " + text
	}
	return fmt.Sprintf(stylePrompt, extra)
}

const promptTail = `Write ONLY the DALL-E prompt (no explanation). Start with "Photorealistic interior design rendering of..."
Keep it under 300 words. Include specific materials, colors, lighting, and camera angle.`

func buildFreshPrompt(prompt string, p models.StyleProfile) string {
	var b strings.Builder
	b.WriteString("You are an expert at writing DALL-E 3 prompts for interior design images.\n\n")
	b.WriteString("Convert this Korean room description and style profile into a detailed English prompt for DALL-E 3.\n")
	b.WriteString("The prompt should produce a photorealistic interior design rendering.\n\n")
	fmt.Fprintf(&b, "Room description: %s\n\n", prompt)
	b.WriteString("Style profile:\n")
	fmt.Fprintf(&b, "- Style: %s\n", p.Style)
	fmt.Fprintf(&b, "- Mood: %s\n", p.Mood)
	fmt.Fprintf(&b, "- Colors: %s\n", strings.Join(p.Colors, ", "))
	fmt.Fprintf(&b, "- Materials: %s\n", strings.Join(p.Materials, ", "))
	fmt.Fprintf(&b, "- Keywords: %s\n\n", strings.Join(p.Keywords, ", "))
	b.WriteString(promptTail)
	return b.String()
}

// buildModifyPrompt puts the requested changes ahead of everything else so
// the image model does not drift back to the previous render.
func buildModifyPrompt(req models.DesignRequest) string {
	p := req.StyleProfile
	var b strings.Builder
	b.WriteString("You are an expert at writing DALL-E 3 prompts for interior design images.\n\n")
	b.WriteString("You are MODIFYING an existing design based on the user's change requests. ")
	b.WriteString("The user's requested changes are the TOP PRIORITY: you MUST reflect them clearly in the prompt.\n\n")
	b.WriteString("=== EXISTING DESIGN (base to modify) ===\n")
	b.WriteString(req.PreviousDescription)
	b.WriteString("\n\n=== USER'S CHANGE REQUESTS (MUST be applied) ===\n")
	for i, r := range req.Refinements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\n=== ORIGINAL CONTEXT ===\n")
	fmt.Fprintf(&b, "Room description: %s\n", req.Prompt)
	fmt.Fprintf(&b, "Style: %s / %s\n", p.Style, p.Mood)
	fmt.Fprintf(&b, "Colors: %s\n", strings.Join(p.Colors, ", "))
	fmt.Fprintf(&b, "Materials: %s\n\n", strings.Join(p.Materials, ", "))
	b.WriteString("CRITICAL: The DALL-E prompt you write MUST explicitly describe the changes the user requested. ")
	b.WriteString("For example, if the user asked for green walls, the prompt MUST mention green walls. ")
	b.WriteString("Keep everything else from the existing design the same.\n\n")
	b.WriteString(promptTail)
	return b.String()
}

func buildDescribePrompt(prompt string, p models.StyleProfile) string {
	return fmt.Sprintf(`당신은 인테리어 디자인 전문가입니다. 이 AI 생성 인테리어 디자인 이미지를 분석하고 한국어로 상세히 설명해주세요.

원래 요청: %s
스타일: %s / %s

다음 내용을 포함해주세요:
1. 전체적인 공간 구성과 분위기
2. 사용된 주요 색상과 소재
3. 가구 배치와 동선
4. 조명과 자연광 활용
5. 특징적인 디자인 포인트

3-4문단으로 자연스럽게 설명해주세요.`, prompt, p.Style, p.Mood)
}

func buildVariationPrompt(req models.VariationRequest, count int) string {
	p := req.StyleProfile
	return fmt.Sprintf(`You are an interior design expert. Based on the design below, create %d distinct style variations.
Each variation should change COLOR SCHEME and/or KEY MATERIALS while maintaining the same room layout and function.

=== CURRENT DESIGN ===
Description: %s
DALL-E prompt used: %s
Style: %s / %s
Colors: %s
Materials: %s

=== INSTRUCTIONS ===
For each variation, provide:
1. A short Korean label (e.g. "모던 블랙 & 골드", "내추럴 우드톤")
2. A complete DALL-E prompt starting with "Photorealistic interior design rendering of..."

Respond ONLY with a JSON array (no markdown, no explanation):
[
  { "label": "변형 라벨", "dallePrompt": "Photorealistic interior design rendering of..." },
  ...
]

Make each variation clearly distinct from each other and from the original.`,
		count, req.Description, req.DallePrompt, p.Style, p.Mood,
		strings.Join(p.Colors, ", "), strings.Join(p.Materials, ", "))
}

func buildVariationDescribePrompt(label string) string {
	return fmt.Sprintf(`이 인테리어 디자인 이미지를 2~3문장으로 간결하게 한국어로 설명해주세요. 스타일 변형명: "%s". 색상, 소재, 분위기를 중심으로 설명하세요.`, label)
}

func buildMaterialPrompt(description string) string {
	if strings.TrimSpace(description) == "" {
		description = "(없음)"
	}
	return fmt.Sprintf(`당신은 인테리어 시공 전문가입니다. 이 인테리어 디자인 이미지를 분석하여 시공에 필요한 자재 목록을 추출해주세요.

디자인 설명: %s

반드시 아래 JSON 배열 형식으로만 응답하세요 (마크다운 코드블록 없이 순수 JSON만):
[
  {
    "name": "자재 이름 (예: 원목 헤링본 마루)",
    "category": "카테고리 (바닥재/벽재/천장재/조명/가구/패브릭/데코/기타)",
    "searchKeyword": "네이버 쇼핑 검색 키워드 (예: 헤링본 마루 바닥재)",
    "estimatedSpec": "예상 규격 (예: 120x600mm)"
  }
]

다음 카테고리를 모두 확인해주세요:
- 바닥재 (마루, 타일, 카펫 등)
- 벽재 (도배지, 페인트, 타일, 몰딩 등)
- 천장재 (몰딩, 석고보드 등)
- 조명 (펜던트, 스탠드, 매입등 등)
- 가구 (주요 가구만)
- 패브릭 (커튼, 러그, 쿠션 등)
- 데코 (액자, 화분, 소품 등)

실제 네이버 쇼핑에서 검색 가능한 구체적인 키워드를 사용해주세요.
최소 5개, 최대 15개 자재를 추출해주세요.`, description)
}
