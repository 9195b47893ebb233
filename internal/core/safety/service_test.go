package safety

import (
	"context"
	"errors"
	"testing"

	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/related"
	"allergen-guard/internal/core/source"
	"allergen-guard/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFood struct {
	items   []source.Item
	err     error
	barcode map[string]*source.Item
	calls   int
}

func (f *fakeFood) Name() string { return source.ProviderOpenFoodFacts }

func (f *fakeFood) FetchIngredientsFor(ctx context.Context, query string) ([]source.Item, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.items) == 0 {
		return nil, common.NotFound("No product found")
	}
	return f.items, nil
}

func (f *fakeFood) LookupBarcode(ctx context.Context, code string) (*source.Item, error) {
	if it, ok := f.barcode[code]; ok {
		return it, nil
	}
	return nil, common.NotFound("No product found")
}

type fakeMeals struct {
	items []source.Item
	err   error
}

func (f *fakeMeals) Name() string { return source.ProviderMealDB }

func (f *fakeMeals) FetchIngredientsFor(ctx context.Context, query string) ([]source.Item, error) {
	return f.items, f.err
}

func (f *fakeMeals) ListAll(ctx context.Context) ([]source.Item, error) {
	return f.items, f.err
}

type fakeMedicine struct {
	items []source.Item
	err   error
}

func (f *fakeMedicine) Name() string { return source.ProviderRxNav }

func (f *fakeMedicine) FetchIngredientsFor(ctx context.Context, query string) ([]source.Item, error) {
	return f.items, f.err
}

type fakeSearcher struct {
	products []source.Product
}

func (f *fakeSearcher) SearchProducts(ctx context.Context, terms string, pageSize int) ([]source.Product, error) {
	return f.products, nil
}

func newTestService(food *fakeFood, meals *fakeMeals, med *fakeMedicine, store related.Store) *Service {
	common.InitNopLogger()
	if store == nil {
		store = related.NewMemoryStore()
	}
	return NewService(Deps{
		Food:     food,
		Meals:    meals,
		Medicine: med,
		Related:  store,
		Syncer:   related.NewSyncer(store, &fakeSearcher{}, 10),
	})
}

func TestCheckFood_ProviderResultWithTags(t *testing.T) {
	food := &fakeFood{items: []source.Item{{
		Name:        "Choco Spread",
		Ingredients: []string{"sugar", "skimmed milk powder"},
		Tags:        []string{"en:milk", "en:nuts"},
		Source:      source.ProviderOpenFoodFacts,
	}}}
	svc := newTestService(food, nil, nil, nil)

	r, err := svc.CheckFood(context.Background(), "u1", "choco", []string{"Milk"})
	require.NoError(t, err)
	assert.True(t, r.Found)
	require.NotNil(t, r.Safe)
	assert.False(t, *r.Safe)
	assert.Equal(t, source.ProviderOpenFoodFacts, r.Source)
	assert.Contains(t, r.Allergens, allergen.Flag{Allergen: "milk", Reason: allergen.ReasonTag, MatchedToken: "en:milk"})
	assert.Contains(t, r.Allergens, allergen.Flag{Allergen: "milk", Reason: allergen.ReasonDirect, MatchedToken: "skimmed milk powder"})
}

func TestCheckFood_NotFoundIsStructured(t *testing.T) {
	svc := newTestService(&fakeFood{}, nil, nil, nil)

	r, err := svc.CheckFood(context.Background(), "u1", "nothing", []string{"milk"})
	require.NoError(t, err)
	assert.False(t, r.Found)
	assert.Nil(t, r.Safe)
	assert.Equal(t, "No product found", r.Message)
	assert.Equal(t, common.ErrCodeNotFound, r.Code)
}

func TestCheckFood_EmptyInput(t *testing.T) {
	food := &fakeFood{}
	svc := newTestService(food, nil, nil, nil)

	r, err := svc.CheckFood(context.Background(), "u1", "   ", []string{"milk"})
	require.NoError(t, err)
	assert.Nil(t, r.Safe)
	assert.Equal(t, common.ErrCodeEmptyInput, r.Code)

	r, err = svc.CheckFood(context.Background(), "u1", "bread", []string{" ", ""})
	require.NoError(t, err)
	assert.Nil(t, r.Safe)
	assert.Equal(t, common.ErrCodeEmptyInput, r.Code)
	assert.Zero(t, food.calls)
}

func TestCheckFood_ProviderUnavailableIsReturned(t *testing.T) {
	food := &fakeFood{err: common.ProviderUnavailable(source.ProviderOpenFoodFacts, errors.New("timeout"))}
	svc := newTestService(food, nil, nil, nil)

	r, err := svc.CheckFood(context.Background(), "u1", "bread", []string{"wheat"})
	assert.Nil(t, r)
	assert.True(t, source.IsUnavailable(err))
}

func TestCheckFood_ZeroIngredientsIsNotSafe(t *testing.T) {
	food := &fakeFood{items: []source.Item{{Name: "Mystery", Source: source.ProviderOpenFoodFacts}}}
	svc := newTestService(food, nil, nil, nil)

	r, err := svc.CheckFood(context.Background(), "u1", "mystery", []string{"milk"})
	require.NoError(t, err)
	assert.False(t, r.Found)
	assert.Nil(t, r.Safe)
}

func TestCheckFood_RelatedCacheFastPath(t *testing.T) {
	ctx := context.Background()
	store := related.NewMemoryStore()
	require.NoError(t, store.Insert(ctx, []related.Food{
		{UserID: "u1", Allergen: "peanut", ProductName: "Satay Sauce", IngredientsText: "groundnut oil, chili"},
	}))
	food := &fakeFood{}
	svc := newTestService(food, nil, nil, store)

	r, err := svc.CheckFood(ctx, "u1", "satay", []string{"peanut"})
	require.NoError(t, err)
	assert.Zero(t, food.calls)
	assert.Equal(t, SourceCache, r.Source)
	assert.Equal(t, "Satay Sauce", r.Name)
	assert.Equal(t, []string{"groundnut oil", "chili"}, r.Ingredients)
	require.NotNil(t, r.Safe)
	assert.False(t, *r.Safe)
	assert.Contains(t, r.Allergens, allergen.Flag{Allergen: "peanut", Reason: allergen.ReasonAlias, MatchedToken: "groundnut"})
	assert.Contains(t, r.Allergens, allergen.Flag{Allergen: "peanut", Reason: allergen.ReasonRelated, MatchedToken: "groundnut oil"})
}

func TestCheckFood_RelatedAfterSync(t *testing.T) {
	ctx := context.Background()
	store := related.NewMemoryStore()
	common.InitNopLogger()
	syncer := related.NewSyncer(store, &fakeSearcher{products: []source.Product{
		{ProductName: "Peanut Oil", IngredientsText: "groundnut oil"},
	}}, 10)
	food := &fakeFood{items: []source.Item{{
		Name:        "Stir Fry Kit",
		Ingredients: []string{"contains groundnut oil"},
		Source:      source.ProviderOpenFoodFacts,
	}}}
	svc := NewService(Deps{
		Engine:  allergen.NewEngine(allergen.Dictionary{}),
		Food:    food,
		Related: store,
		Syncer:  syncer,
	})

	res, err := svc.SyncRelatedFoods(ctx, "u1", "peanut")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	r, err := svc.CheckFood(ctx, "u1", "stir fry", []string{"peanut"})
	require.NoError(t, err)
	assert.Equal(t, source.ProviderOpenFoodFacts, r.Source)
	assert.Equal(t, []allergen.Flag{{Allergen: "peanut", Reason: allergen.ReasonRelated, MatchedToken: "groundnut oil"}}, r.Allergens)

	n, err := svc.RelatedCount(ctx, "u1", "Peanut")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCheckBarcode(t *testing.T) {
	food := &fakeFood{barcode: map[string]*source.Item{
		"123": {Name: "Oat Bar", Ingredients: []string{"oats", "honey"}, Barcode: "123", Source: source.ProviderOpenFoodFacts},
	}}
	svc := newTestService(food, nil, nil, nil)

	r, err := svc.CheckBarcode(context.Background(), "u1", " 123 ", []string{"peanut"})
	require.NoError(t, err)
	require.NotNil(t, r.Safe)
	assert.True(t, *r.Safe)
	assert.Equal(t, "123", r.Barcode)

	r, err = svc.CheckBarcode(context.Background(), "u1", "999", []string{"peanut"})
	require.NoError(t, err)
	assert.False(t, r.Found)
	assert.Nil(t, r.Safe)
}

func TestCheckMeal(t *testing.T) {
	meals := &fakeMeals{items: []source.Item{
		{Name: "Pad Thai", Ingredients: []string{"rice noodles", "peanuts"}, Source: source.ProviderMealDB},
		{Name: "Green Salad", Ingredients: []string{"lettuce", "cucumber"}, Source: source.ProviderMealDB},
	}}
	svc := newTestService(nil, meals, nil, nil)

	r, err := svc.CheckMeal(context.Background(), "thai", []string{"peanut"})
	require.NoError(t, err)
	assert.True(t, r.Found)
	require.Len(t, r.Meals, 2)
	assert.False(t, *r.Meals[0].Safe)
	assert.True(t, *r.Meals[1].Safe)

	meals.items = nil
	r, err = svc.CheckMeal(context.Background(), "zzz", []string{"peanut"})
	require.NoError(t, err)
	assert.False(t, r.Found)
	assert.Equal(t, common.ErrCodeNotFound, r.Code)
}

func TestCheckMedicine_PenicillinFamily(t *testing.T) {
	med := &fakeMedicine{items: []source.Item{{
		Name:        "augmentin",
		Ingredients: []string{"amoxicillin", "clavulanate"},
		Source:      source.ProviderRxNav,
	}}}
	svc := newTestService(nil, nil, med, nil)

	r, err := svc.CheckMedicine(context.Background(), "Augmentin", []string{"Penicillin"})
	require.NoError(t, err)
	require.NotNil(t, r.Safe)
	assert.False(t, *r.Safe)
	assert.Contains(t, r.Allergens, allergen.Flag{Allergen: "penicillin", Reason: allergen.ReasonCrossReactive, MatchedToken: "amoxicillin"})
	assert.Contains(t, r.Allergens, allergen.Flag{Allergen: "penicillin", Reason: allergen.ReasonCrossReactive, MatchedToken: "clavulanate"})

	r, err = svc.CheckMedicine(context.Background(), "Augmentin", []string{"penicillins"})
	require.NoError(t, err)
	assert.True(t, *r.Safe)
	assert.Equal(t, "No allergenic ingredients found", r.Message)
}

func TestCheckMedicine_NotFoundMessage(t *testing.T) {
	svc := newTestService(nil, nil, &fakeMedicine{err: common.NotFound("Medicine not found")}, nil)

	r, err := svc.CheckMedicine(context.Background(), "notadrug", []string{"penicillin"})
	require.NoError(t, err)
	assert.False(t, r.Found)
	assert.Nil(t, r.Safe)
	assert.Equal(t, "Medicine not found", r.Message)
}

func TestSafeMeals_FiltersUnsafeAndByDiet(t *testing.T) {
	meals := &fakeMeals{items: []source.Item{
		{Name: "Pad Thai", Ingredients: []string{"rice noodles", "peanuts"}, Category: "Chicken"},
		{Name: "Fried Rice", Ingredients: []string{"rice", "egg"}, Category: "Vegetarian"},
		{Name: "Lamb Stew", Ingredients: []string{"lamb", "potato"}, Category: "Lamb"},
		{Name: "Empty", Category: "Vegetarian"},
	}}
	svc := newTestService(nil, meals, nil, nil)

	out, err := svc.SafeMeals(context.Background(), "u1", []string{"peanut"}, MealFilter{Diet: "all"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Fried Rice", out[0].Name)
	assert.Equal(t, "Lamb Stew", out[1].Name)

	out, err = svc.SafeMeals(context.Background(), "u1", []string{"peanut"}, MealFilter{Diet: "veg"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Fried Rice", out[0].Name)

	out, err = svc.SafeMeals(context.Background(), "u1", nil, MealFilter{Category: "lamb"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Lamb Stew", out[0].Name)
}
