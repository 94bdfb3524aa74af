package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/vinyard/internal/config"
	"github.com/zulandar/vinyard/internal/logger"
	"github.com/zulandar/vinyard/internal/merge"
	"github.com/zulandar/vinyard/internal/notify"
	"github.com/zulandar/vinyard/internal/schema"
	"github.com/zulandar/vinyard/internal/score"
	"github.com/zulandar/vinyard/internal/sites"
	"github.com/zulandar/vinyard/internal/store"
)

type testApp struct {
	router *gin.Engine
	store  *store.Store
	mock   *notify.MockAdapter
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "data")
	engine, err := schema.NewEngine(dataDir, filepath.Join(t.TempDir(), "backups"), schema.Registry(), logger.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, err := store.Open(dataDir, engine, logger.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	settings, err := config.OpenSettings(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mock := notify.NewMockAdapter()
	log := logger.Discard()
	router, err := NewRouter(StartOpts{
		Store:    st,
		Merge:    merge.NewEngine(st, sites.Default(log), log),
		Scorer:   score.NewScorer(score.DefaultWeights()),
		Settings: settings,
		Notifier: notify.New(log, mock),
		Log:      log,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &testApp{router: router, store: st, mock: mock}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func submission(vin string) map[string]string {
	return map[string]string{
		"site":  "cargurus",
		"vin":   vin,
		"price": "$16,495",
		"year":  "2017",
		"title": "2017 Volkswagen GTI SE",
		"url":   "https://www.cargurus.com/Cars/" + vin,
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestSubmitLifecycle(t *testing.T) {
	app := newTestApp(t)

	// Create.
	w := app.do(t, http.MethodPost, "/listings", submission("VIN1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("response missing id")
	}
	if body["updated"] != false {
		t.Errorf("updated = %v, want false", body["updated"])
	}
	if msgs := app.mock.Messages(); len(msgs) != 1 || !strings.Contains(msgs[0], "VIN1") {
		t.Errorf("notification messages = %v", msgs)
	}

	// Identical resubmission.
	w = app.do(t, http.MethodPost, "/listings", submission("VIN1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body = decodeBody(t, w)
	if body["message"] != "No changes detected" {
		t.Errorf("message = %v", body["message"])
	}
	if len(app.mock.Messages()) != 1 {
		t.Error("unchanged submission should not notify")
	}

	// Price change.
	changed := submission("VIN1")
	changed["price"] = "$15,995"
	w = app.do(t, http.MethodPost, "/listings", changed)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body = decodeBody(t, w)
	if body["updated"] != true {
		t.Errorf("updated = %v, want true", body["updated"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "price: $16,495 -> $15,995") {
		t.Errorf("message = %q", msg)
	}
}

func TestSubmit_Validation(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/listings", map[string]string{"site": "craigslist", "vin": "X"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown site status = %d, want 400", w.Code)
	}

	w = app.do(t, http.MethodPost, "/listings", map[string]string{"site": "cargurus", "price": "$1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing vin status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/listings", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestListSorting(t *testing.T) {
	app := newTestApp(t)
	for vin, price := range map[string]string{"VIN1": "$20,000", "VIN2": "$10,000", "VIN3": "$15,000"} {
		s := submission(vin)
		s["price"] = price
		if w := app.do(t, http.MethodPost, "/listings", s); w.Code != http.StatusCreated {
			t.Fatalf("seed %s: status %d", vin, w.Code)
		}
	}

	w := app.do(t, http.MethodGet, "/listings?sort=price", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Count    int `json:"count"`
		Listings []struct {
			Data struct {
				Price string `json:"price"`
			} `json:"data"`
			DesirabilityScore float64 `json:"desirability_score"`
		} `json:"listings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 3 {
		t.Fatalf("count = %d, want 3", body.Count)
	}
	if body.Listings[0].Data.Price != "$10,000" || body.Listings[2].Data.Price != "$20,000" {
		t.Errorf("price sort order wrong: %+v", body.Listings)
	}

	// Default sort is score descending; cheapest wins on the price axis.
	w = app.do(t, http.MethodGet, "/listings", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Listings[0].Data.Price != "$10,000" {
		t.Errorf("score sort: first price = %q, want $10,000", body.Listings[0].Data.Price)
	}
	for i := 1; i < len(body.Listings); i++ {
		if body.Listings[i].DesirabilityScore > body.Listings[i-1].DesirabilityScore {
			t.Error("scores not descending")
		}
	}
}

func TestListSorting_YearlessListingsLast(t *testing.T) {
	app := newTestApp(t)
	for vin, year := range map[string]string{"VIN1": "2019", "VIN2": "", "VIN3": "2015"} {
		s := submission(vin)
		if year == "" {
			delete(s, "year")
		} else {
			s["year"] = year
		}
		if w := app.do(t, http.MethodPost, "/listings", s); w.Code != http.StatusCreated {
			t.Fatalf("seed %s: status %d", vin, w.Code)
		}
	}

	w := app.do(t, http.MethodGet, "/listings?sort=year", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Listings []struct {
			Data struct {
				Year string `json:"year"`
			} `json:"data"`
		} `json:"listings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	years := make([]string, len(body.Listings))
	for i, l := range body.Listings {
		years[i] = l.Data.Year
	}
	want := []string{"2019", "2015", ""}
	for i := range want {
		if years[i] != want[i] {
			t.Fatalf("year sort order = %v, want %v", years, want)
		}
	}
}

func TestEditAndComments(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/listings", submission("VIN1"))
	id := decodeBody(t, w)["id"].(string)

	w = app.do(t, http.MethodPatch, "/listings/"+id, map[string]any{
		"trim_level":          "SE",
		"performance_package": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	got, err := app.store.GetByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data.TrimLevel != "SE" {
		t.Errorf("trim_level = %q, want SE", got.Data.TrimLevel)
	}
	if got.Data.PerformancePackage == nil || !*got.Data.PerformancePackage {
		t.Errorf("performance_package = %v, want true", got.Data.PerformancePackage)
	}

	w = app.do(t, http.MethodPut, "/listings/"+id+"/comments", map[string]string{"comments": "seller is motivated"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got, err = app.store.GetByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Comments != "seller is motivated" {
		t.Errorf("comments = %q", got.Comments)
	}

	if w := app.do(t, http.MethodPatch, "/listings/missing", map[string]any{"trim_level": "S"}); w.Code != http.StatusNotFound {
		t.Errorf("edit missing listing status = %d, want 404", w.Code)
	}
}

func TestDelete(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/listings", submission("VIN1"))
	id := decodeBody(t, w)["id"].(string)

	if w := app.do(t, http.MethodDelete, "/listings/"+id, nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// Deleted listings stay retrievable by id but leave the active list.
	if w := app.do(t, http.MethodGet, "/listings/"+id, nil); w.Code != http.StatusOK {
		t.Errorf("get deleted listing status = %d, want 200", w.Code)
	}
	w = app.do(t, http.MethodGet, "/listings", nil)
	if body := decodeBody(t, w); body["count"] != float64(0) {
		t.Errorf("count = %v, want 0", body["count"])
	}

	if w := app.do(t, http.MethodDelete, "/listings/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", w.Code)
	}
}

func TestConfigRoutes(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPut, "/config", map[string]string{"max_distance": "250"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = app.do(t, http.MethodGet, "/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["max_distance"] != "250" {
		t.Errorf("config = %v", body)
	}
}

func TestNewRouter_RequiresDeps(t *testing.T) {
	if _, err := NewRouter(StartOpts{}); err == nil {
		t.Error("expected error without store")
	}
}

func TestNumericField(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$16,495", 16495},
		{"45,000", 45000},
		{"2017", 2017},
		{"n/a", 1e18},
		{"", 1e18},
	}
	for _, tt := range tests {
		if got := numericField(tt.in); got != tt.want {
			t.Errorf("numericField(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestYearField(t *testing.T) {
	if got := yearField("2017"); got != 2017 {
		t.Errorf("yearField(2017) = %v", got)
	}
	for _, in := range []string{"", "n/a"} {
		if got := yearField(in); got != -1 {
			t.Errorf("yearField(%q) = %v, want -1", in, got)
		}
	}
}
