package source

import (
	"context"
	"net/url"
	"strings"

	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/cache"
	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"go.uber.org/zap"
)

type rxcuiResponse struct {
	IDGroup struct {
		Name     string   `json:"name"`
		RxnormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

type approximateResponse struct {
	ApproximateGroup struct {
		Candidate []struct {
			Rxcui string `json:"rxcui"`
			Score string `json:"score"`
			Rank  string `json:"rank"`
		} `json:"candidate"`
	} `json:"approximateGroup"`
}

type relatedResponse struct {
	RelatedGroup struct {
		ConceptGroup []struct {
			TTY               string `json:"tty"`
			ConceptProperties []struct {
				Rxcui string `json:"rxcui"`
				Name  string `json:"name"`
			} `json:"conceptProperties"`
		} `json:"conceptGroup"`
	} `json:"relatedGroup"`
}

// MedicineSource 藥名 → 概念 ID → 成分概念的兩段式查詢
type MedicineSource struct {
	http *httpClient
}

// NewMedicineSource 創建藥品來源
func NewMedicineSource(cfg *config.ProvidersConfig, c cache.Cache) *MedicineSource {
	return &MedicineSource{http: newHTTPClient(ProviderRxNav, cfg.RxNavURL, cfg, c)}
}

// Name 供應商名稱
func (s *MedicineSource) Name() string { return ProviderRxNav }

// ResolveConcept 先精確比對名稱，失敗時改用近似詞查詢；都失敗回傳空字串
func (s *MedicineSource) ResolveConcept(ctx context.Context, name string) (string, error) {
	query := strings.ToLower(strings.TrimSpace(name))

	params := url.Values{}
	params.Set("name", query)
	var exact rxcuiResponse
	if err := s.http.getJSON(ctx, "/rxcui.json", params, &exact); err != nil && !IsNotFound(err) {
		return "", err
	}
	if len(exact.IDGroup.RxnormID) > 0 && exact.IDGroup.RxnormID[0] != "" {
		return exact.IDGroup.RxnormID[0], nil
	}

	params = url.Values{}
	params.Set("term", query)
	var approx approximateResponse
	if err := s.http.getJSON(ctx, "/approximateTerm.json", params, &approx); err != nil && !IsNotFound(err) {
		return "", err
	}
	for _, c := range approx.ApproximateGroup.Candidate {
		if c.Rxcui != "" {
			common.LogDebug("藥名以近似詞解析",
				zap.String("query", query),
				zap.String("rxcui", c.Rxcui),
				zap.String("score", c.Score),
			)
			return c.Rxcui, nil
		}
	}
	return "", nil
}

// IngredientConcepts 取得概念的成分（IN）名稱，小寫去重
func (s *MedicineSource) IngredientConcepts(ctx context.Context, rxcui string) ([]string, error) {
	params := url.Values{}
	params.Set("tty", "IN")

	var resp relatedResponse
	if err := s.http.getJSON(ctx, "/rxcui/"+url.PathEscape(rxcui)+"/related.json", params, &resp); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, g := range resp.RelatedGroup.ConceptGroup {
		for _, c := range g.ConceptProperties {
			names = append(names, c.Name)
		}
	}
	return common.Dedupe(allergen.Clean(names)), nil
}

// FetchIngredientsFor 解析失敗回傳 "Medicine not found"；
// 成分為空時以查詢名稱本身作為唯一成分
func (s *MedicineSource) FetchIngredientsFor(ctx context.Context, query string) ([]Item, error) {
	rxcui, err := s.ResolveConcept(ctx, query)
	if err != nil {
		return nil, err
	}
	if rxcui == "" {
		return nil, common.NotFound("Medicine not found")
	}

	ingredients, err := s.IngredientConcepts(ctx, rxcui)
	if err != nil {
		return nil, err
	}
	if len(ingredients) == 0 {
		ingredients = allergen.Clean([]string{query})
	}

	return []Item{{
		Name:        strings.TrimSpace(query),
		Ingredients: ingredients,
		Source:      ProviderRxNav,
		ID:          rxcui,
	}}, nil
}
