package related

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"allergen-guard/internal/core/allergen"
	"allergen-guard/internal/core/source"
	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	mu       sync.Mutex
	products []source.Product
	err      error
	calls    int
}

func (f *fakeSearcher) SearchProducts(ctx context.Context, terms string, pageSize int) ([]source.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.products, f.err
}

type failingInsertStore struct {
	*MemoryStore
}

func (s failingInsertStore) Insert(ctx context.Context, foods []Food) error {
	return errors.New("insert failed")
}

func init() {
	common.InitNopLogger()
}

func TestSync_ReplacesPreviousRows(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	searcher := &fakeSearcher{products: []source.Product{
		{ProductName: "Peanut Butter", IngredientsText: "peanuts, salt"},
		{ProductName: "Satay Sauce", IngredientsText: "peanut, chili"},
	}}
	syncer := NewSyncer(store, searcher, 0)

	res, err := syncer.Sync(ctx, "u1", " Peanut ")
	require.NoError(t, err)
	assert.Equal(t, "peanut", res.Allergen)
	assert.Equal(t, 2, res.Inserted)

	searcher.products = []source.Product{{ProductName: "Trail Mix", IngredientsText: "raisins, peanuts"}}
	res, err = syncer.Sync(ctx, "u1", "peanut")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	rows, err := store.List(ctx, "u1", "peanut")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Trail Mix", rows[0].ProductName)
	assert.Equal(t, source.ProviderOpenFoodFacts, rows[0].Source)
}

func TestSync_SkipsBlankProducts(t *testing.T) {
	store := NewMemoryStore()
	searcher := &fakeSearcher{products: []source.Product{{}, {ProductNameEN: "Cookies"}}}

	res, err := NewSyncer(store, searcher, 10).Sync(context.Background(), "u1", "egg")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.Inserted)
}

func TestSync_SearchFailureKeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Insert(ctx, []Food{{UserID: "u1", Allergen: "milk", ProductName: "Cheese"}}))

	searcher := &fakeSearcher{err: common.ProviderUnavailable(source.ProviderOpenFoodFacts, errors.New("down"))}
	_, err := NewSyncer(store, searcher, 10).Sync(ctx, "u1", "milk")
	require.Error(t, err)
	assert.True(t, source.IsUnavailable(err))

	n, _ := store.Count(ctx, "u1", "milk")
	assert.Equal(t, int64(1), n)
}

func TestSync_InsertFailureLeavesCacheEmpty(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.Insert(ctx, []Food{{UserID: "u1", Allergen: "milk", ProductName: "Old"}}))

	searcher := &fakeSearcher{products: []source.Product{{ProductName: "New"}}}
	res, err := NewSyncer(failingInsertStore{mem}, searcher, 10).Sync(ctx, "u1", "milk")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)

	n, _ := mem.Count(ctx, "u1", "milk")
	assert.Zero(t, n)
}

func TestSync_EmptyInput(t *testing.T) {
	searcher := &fakeSearcher{}
	_, err := NewSyncer(NewMemoryStore(), searcher, 10).Sync(context.Background(), "u1", "  ")
	assert.True(t, common.IsCode(err, common.ErrCodeEmptyInput))
	assert.Zero(t, searcher.calls)
}

func TestTokens_FeedsRelatedDetection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	searcher := &fakeSearcher{products: []source.Product{
		{ProductName: "Satay Sauce", IngredientsText: "groundnut paste, chili"},
	}}
	_, err := NewSyncer(store, searcher, 10).Sync(ctx, "u1", "peanut")
	require.NoError(t, err)

	tokens, err := Tokens(ctx, store, "u1", []string{"Peanut", "milk", "peanut"})
	require.NoError(t, err)
	assert.Equal(t, []string{"satay sauce", "groundnut paste", "chili"}, tokens["peanut"])
	_, ok := tokens["milk"]
	assert.False(t, ok)

	flags := allergen.NewEngine(allergen.Dictionary{}).Detect(
		[]string{"chicken satay sauce"}, []string{"peanut"}, allergen.Options{Related: tokens})
	require.Len(t, flags, 1)
	assert.Equal(t, allergen.ReasonRelated, flags[0].Reason)
	assert.Equal(t, "satay sauce", flags[0].MatchedToken)
}

func TestMemoryStore_SearchByName(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Insert(ctx, []Food{
		{UserID: "u1", Allergen: "milk", ProductName: "Chocolate Milk"},
		{UserID: "u1", Allergen: "peanut", ProductName: "Peanut Chocolate Bar"},
		{UserID: "u2", Allergen: "milk", ProductName: "Chocolate Cake"},
	}))

	rows, err := store.SearchByName(ctx, "u1", "CHOCOLATE", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Chocolate Milk", rows[0].ProductName)

	rows, _ = store.SearchByName(ctx, "u1", "chocolate", 1)
	assert.Len(t, rows, 1)
}

func TestQueue_ProcessesJobs(t *testing.T) {
	store := NewMemoryStore()
	searcher := &fakeSearcher{products: []source.Product{{ProductName: "Omelette Mix"}}}
	q := NewQueue(&config.QueueConfig{Workers: 2, MaxSize: 10}, NewSyncer(store, searcher, 10), time.Second)
	q.Start()

	require.NoError(t, q.Enqueue(context.Background(), Job{UserID: "u1", Allergen: "egg"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{UserID: "u1", Allergen: ""}))
	q.Close()

	status := q.GetQueueStatus()
	assert.Equal(t, 1, status.ProcessedCount)
	assert.Equal(t, 1, status.FailedCount)

	n, _ := store.Count(context.Background(), "u1", "egg")
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{UserID: "u1", Allergen: "egg"}), common.ErrQueueClosed)
}

func TestQueue_FullReturnsError(t *testing.T) {
	q := NewQueue(&config.QueueConfig{Workers: 0, MaxSize: 1}, NewSyncer(NewMemoryStore(), &fakeSearcher{}, 10), time.Second)

	require.NoError(t, q.Enqueue(context.Background(), Job{UserID: "u1", Allergen: "egg"}))
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{UserID: "u1", Allergen: "milk"}), common.ErrQueueFull)
}
