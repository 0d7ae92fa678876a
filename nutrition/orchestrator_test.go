package nutrition_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanly/nutriengine/llm"
	"github.com/scanly/nutriengine/llm/testutil"
	"github.com/scanly/nutriengine/nutrition"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu          sync.Mutex
	analyses    map[string]*nutrition.AnalysisResult
	ingredients map[string][]nutrition.EstimatedIngredient
	saveErr     error
	saves       int
}

func newMemStore() *memStore {
	return &memStore{
		analyses:    make(map[string]*nutrition.AnalysisResult),
		ingredients: make(map[string][]nutrition.EstimatedIngredient),
	}
}

func (s *memStore) LoadAnalysis(_ context.Context, productID string) (*nutrition.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyses[productID], nil
}

func (s *memStore) SaveAnalysis(_ context.Context, productID string, result *nutrition.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.analyses[productID] = result
	return nil
}

func (s *memStore) LoadIngredients(_ context.Context, productID, userID string) ([]nutrition.EstimatedIngredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingredients[productID+"/"+userID], nil
}

func (s *memStore) SaveIngredients(_ context.Context, productID, userID string, items []nutrition.EstimatedIngredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients[productID+"/"+userID] = items
	return nil
}

const validModelResponse = `{
	"healthScore": 72,
	"sustainabilityScore": 55,
	"analysis": "Buon profilo nutrizionale.",
	"sustainabilityAnalysis": "Impatto moderato.",
	"pros": [{"title": "Fibre", "detail": "Ricco di fibre"}],
	"cons": [{"title": "Nutri-Score: D", "detail": ""}],
	"sustainabilityPros": [],
	"sustainabilityCons": [],
	"recommendations": ["Consumare con moderazione"],
	"sustainabilityRecommendations": []
}`

func testProduct() *nutrition.ProductData {
	return &nutrition.ProductData{
		Name:       "Biscotti integrali",
		Brand:      "Esempio",
		Nutrients:  map[string]string{"energia": "450 kcal"},
		NutriScore: "C",
	}
}

func newTestOrchestrator(mock *testutil.MockModelClient, store nutrition.Store) *nutrition.Orchestrator {
	return nutrition.NewOrchestrator(mock, store)
}

func TestOrchestrator_GetOrCreate_TextMode(t *testing.T) {
	mock := &testutil.MockModelClient{
		Responses: []*llm.Response{{Content: validModelResponse, Model: "test-model"}},
	}
	store := newMemStore()
	o := newTestOrchestrator(mock, store)

	outcome, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)

	assert.False(t, outcome.Fallback)
	assert.False(t, outcome.Reused)
	assert.Equal(t, 72, outcome.Result.HealthScore)
	assert.Equal(t, 1, mock.CallCount())

	// Score restatements are filtered out of the lists.
	assert.Empty(t, outcome.Result.Cons)
	assert.Len(t, outcome.Result.Pros, 1)

	// The accepted result is persisted.
	saved, _ := store.LoadAnalysis(context.Background(), "prod-1")
	require.NotNil(t, saved)
	assert.Equal(t, 72, saved.HealthScore)
}

func TestOrchestrator_GetOrCreate_SecondCallHitsCache(t *testing.T) {
	mock := &testutil.MockModelClient{
		Responses: []*llm.Response{{Content: validModelResponse, Model: "test-model"}},
	}
	o := newTestOrchestrator(mock, newMemStore())

	first, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err)

	second, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Same(t, first.Result, second.Result)
	assert.Equal(t, 1, mock.CallCount())
}

func TestOrchestrator_GetOrCreate_ReusesCompletePersistedRecord(t *testing.T) {
	mock := &testutil.MockModelClient{}
	store := newMemStore()
	store.analyses["prod-1"] = &nutrition.AnalysisResult{
		HealthScore: 64,
		Analysis:    "Analisi salvata in precedenza.",
	}
	o := newTestOrchestrator(mock, store)

	outcome, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err)

	assert.True(t, outcome.Reused)
	assert.Equal(t, 64, outcome.Result.HealthScore)
	assert.Equal(t, 0, mock.CallCount(), "complete persisted record must not trigger a model call")
}

func TestOrchestrator_GetOrCreate_IncompletePersistedRecordReanalyzes(t *testing.T) {
	mock := &testutil.MockModelClient{
		Responses: []*llm.Response{{Content: validModelResponse, Model: "test-model"}},
	}
	store := newMemStore()
	store.analyses["prod-1"] = &nutrition.AnalysisResult{HealthScore: 64} // no analysis text

	o := newTestOrchestrator(mock, store)

	outcome, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err)

	assert.False(t, outcome.Reused)
	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, 72, outcome.Result.HealthScore)
}

func TestOrchestrator_GetOrCreate_ModelUnavailable(t *testing.T) {
	mock := &testutil.MockModelClient{Err: errors.New("connection refused")}
	store := newMemStore()
	o := newTestOrchestrator(mock, store)

	_, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.Error(t, err)
	assert.True(t, nutrition.IsModelUnavailable(err))

	// Nothing persisted, nothing cached: a later retry issues a fresh call.
	assert.Equal(t, 0, store.saves)
	_, err = o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.Error(t, err)
	assert.Equal(t, 2, mock.CallCount())
}

func TestOrchestrator_GetOrCreate_FallbackOnUnparseableResponse(t *testing.T) {
	mock := &testutil.MockModelClient{
		Responses: []*llm.Response{{Content: "Mi dispiace, non posso aiutarti.", Model: "test-model"}},
	}
	store := newMemStore()
	o := newTestOrchestrator(mock, store)

	outcome, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err, "parse failures must never surface as errors")

	assert.True(t, outcome.Fallback)
	require.NotNil(t, outcome.Result)
	assert.True(t, outcome.Result.IsComplete())

	// Fallback results persist and cache like any other.
	saved, _ := store.LoadAnalysis(context.Background(), "prod-1")
	assert.NotNil(t, saved)
}

func TestOrchestrator_GetOrCreate_PersistFailureStillReturnsResult(t *testing.T) {
	mock := &testutil.MockModelClient{
		Responses: []*llm.Response{{Content: validModelResponse, Model: "test-model"}},
	}
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	o := newTestOrchestrator(mock, store)

	outcome, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)

	// The result still serves from cache in-session.
	second, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, 1, mock.CallCount())
}

func TestOrchestrator_GetOrCreate_WrongSourceForMode(t *testing.T) {
	o := newTestOrchestrator(&testutil.MockModelClient{}, newMemStore())

	_, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModePhoto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "photo mode requires")

	photo := &nutrition.PhotoData{ImageData: []byte{0x01}, MIMEType: "image/jpeg"}
	_, err = o.GetOrCreate(context.Background(), "prod-2", "user-1", photo, nutrition.ModeText)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text mode requires")
}

// blockingModel holds Complete until released, for in-flight serialization
// tests.
type blockingModel struct {
	started chan struct{}
	release chan struct{}
}

func (m *blockingModel) Complete(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	close(m.started)
	select {
	case <-m.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &llm.Response{Content: validModelResponse, Model: "test-model"}, nil
}

func TestOrchestrator_GetOrCreate_SerializesPerKey(t *testing.T) {
	model := &blockingModel{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	o := nutrition.NewOrchestrator(model, newMemStore())

	done := make(chan error, 1)
	go func() {
		_, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
		done <- err
	}()

	<-model.started

	// Same key while the first call is in flight.
	_, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	assert.ErrorIs(t, err, nutrition.ErrAnalysisInFlight)

	close(model.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first analysis did not complete")
	}

	// After completion the key is free again (and served from cache).
	outcome, err := o.GetOrCreate(context.Background(), "prod-1", "user-1", testProduct(), nutrition.ModeText)
	require.NoError(t, err)
	assert.True(t, outcome.Reused)
}

func TestOrchestrator_EstimateSingleIngredient(t *testing.T) {
	tests := []struct {
		name        string
		mock        *testutil.MockModelClient
		wantSuccess bool
		wantKcal    float64
	}{
		{
			name: "valid estimate",
			mock: &testutil.MockModelClient{
				Responses: []*llm.Response{{Content: `{"caloriesKcal": 95.0, "weightGrams": 150, "proteinsGrams": 0.5}`}},
			},
			wantSuccess: true,
			wantKcal:    95.0,
		},
		{
			name:        "transport failure",
			mock:        &testutil.MockModelClient{Err: errors.New("timeout")},
			wantSuccess: false,
		},
		{
			name: "no JSON in response",
			mock: &testutil.MockModelClient{
				Responses: []*llm.Response{{Content: "circa cento calorie"}},
			},
			wantSuccess: false,
		},
		{
			name: "missing calories field",
			mock: &testutil.MockModelClient{
				Responses: []*llm.Response{{Content: `{"weightGrams": 150}`}},
			},
			wantSuccess: false,
		},
		{
			name: "negative calories rejected",
			mock: &testutil.MockModelClient{
				Responses: []*llm.Response{{Content: `{"caloriesKcal": -10}`}},
			},
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(tt.mock, newMemStore())

			estimate := o.EstimateSingleIngredient(context.Background(), "Mela", nil)
			assert.Equal(t, tt.wantSuccess, estimate.Success)
			if tt.wantSuccess {
				assert.Equal(t, tt.wantKcal, estimate.CaloriesKcal)
				require.NotNil(t, estimate.WeightGrams)
				assert.Equal(t, 150.0, *estimate.WeightGrams)
			} else {
				assert.NotEmpty(t, estimate.ErrorMessage)
			}
		})
	}
}

func TestOrchestrator_EstimateSingleIngredient_PromptIncludesWeight(t *testing.T) {
	mock := &testutil.MockModelClient{
		Responses: []*llm.Response{{Content: `{"caloriesKcal": 52}`}},
	}
	o := newTestOrchestrator(mock, newMemStore())

	weight := 80.0
	estimate := o.EstimateSingleIngredient(context.Background(), "Kiwi", &weight)
	require.True(t, estimate.Success)

	reqs := mock.CapturedRequests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "Kiwi")
	assert.Contains(t, reqs[0].Messages[0].Content, "80")
}
