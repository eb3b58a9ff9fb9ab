package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salestax-cli/internal/location"
	"github.com/sells-group/salestax-cli/internal/model"
	"github.com/sells-group/salestax-cli/internal/quote"
	"github.com/sells-group/salestax-cli/internal/report"
	"github.com/sells-group/salestax-cli/internal/taxcalc"
	"github.com/sells-group/salestax-cli/internal/taxtable"
)

type stubResolver map[string]model.LocationRecord

func (s stubResolver) Resolve(_ context.Context, zip string) (model.LocationRecord, error) {
	switch zip {
	case "89501":
		return model.LocationRecord{PostalCode: zip, City: "RENO", County: "WASHOE", State: "NEVADA"}, location.ErrOutOfDomain
	case "99999":
		return model.LocationRecord{}, eris.New("geonames unavailable")
	}
	rec, ok := s[zip]
	if !ok {
		return model.LocationRecord{PostalCode: zip}, location.ErrGeocoderMiss
	}
	return rec, nil
}

func newTestRouter(rows []model.TaxTableRow) http.Handler {
	r := stubResolver{
		"92101": {PostalCode: "92101", City: "SAN DIEGO", County: "SAN DIEGO", State: "CALIFORNIA"},
		"93301": {PostalCode: "93301", City: "BAKERSFELD", County: "KERN", State: "CALIFORNIA"},
		"96001": {PostalCode: "96001", City: "REDDING", County: "SHASTA", State: "CALIFORNIA"},
	}
	svc := quote.NewService(r, taxtable.NewTable(rows), taxcalc.NewCalculator(taxcalc.DefaultPolicy()))
	return NewRouter(svc)
}

func defaultRows() []model.TaxTableRow {
	return []model.TaxTableRow{
		{City: "SAN DIEGO", County: "SAN DIEGO", Rate: "7.75%"},
		{City: "BAKERSFIELD", County: "KERN", Rate: "8.25%"},
		{City: "REDDING", County: "SHASTA", Rate: "N/A"},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	rr := get(t, newTestRouter(defaultRows()), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["rates"])
}

func TestRates_Filter(t *testing.T) {
	h := newTestRouter(defaultRows())

	rr := get(t, h, "/v1/rates?county=kern")
	require.Equal(t, http.StatusOK, rr.Code)
	var rows []model.TaxTableRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "BAKERSFIELD", rows[0].City)

	rr = get(t, h, "/v1/rates")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	assert.Len(t, rows, 3)
}

func TestRates_NoMatchesIsEmptyArray(t *testing.T) {
	rr := get(t, newTestRouter(defaultRows()), "/v1/rates?city=nowhere")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestLocation_SanDiego(t *testing.T) {
	rr := get(t, newTestRouter(defaultRows()), "/v1/locations/92101")
	require.Equal(t, http.StatusOK, rr.Code)

	var v report.MatchView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, "92101", v.ZIP)
	assert.Equal(t, "SAN DIEGO", v.City)
	assert.Equal(t, "7.75%", v.TotalRate)
	assert.Equal(t, "7.25%", v.StateRate)
	require.NotNil(t, v.CountyRate)
	assert.Equal(t, "0.25%", *v.CountyRate)
	require.NotNil(t, v.CityRate)
	assert.Equal(t, "0.25%", *v.CityRate)
}

func TestQuote_SanDiego(t *testing.T) {
	rr := get(t, newTestRouter(defaultRows()), "/v1/quotes?zip=92101&payment=1000")
	require.Equal(t, http.StatusOK, rr.Code)

	var v report.QuoteView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, "$1000.00", v.Payment)
	assert.Equal(t, "$77.50", v.TotalTax)
	assert.Equal(t, "$72.50", v.Remittance.State)
	assert.Equal(t, "$2.50", v.Remittance.County)
	require.NotNil(t, v.Remittance.City)
	assert.Equal(t, "$2.50", *v.Remittance.City)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"invalid zip", "/v1/locations/abc", http.StatusBadRequest},
		{"invalid payment", "/v1/quotes?zip=92101&payment=-5", http.StatusBadRequest},
		{"missing payment", "/v1/quotes?zip=92101", http.StatusBadRequest},
		{"geocoder miss", "/v1/locations/00000", http.StatusNotFound},
		{"no rate match", "/v1/locations/93301", http.StatusNotFound},
		{"out of domain", "/v1/locations/89501", http.StatusUnprocessableEntity},
		{"invalid rate", "/v1/locations/96001", http.StatusUnprocessableEntity},
		{"transport failure", "/v1/locations/99999", http.StatusInternalServerError},
	}
	h := newTestRouter(defaultRows())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, h, tt.path)
			assert.Equal(t, tt.status, rr.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestNoRateMatchCarriesSuggestions(t *testing.T) {
	rr := get(t, newTestRouter(defaultRows()), "/v1/locations/93301")
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []string{"BAKERSFIELD"}, body.Suggestions)
	assert.Contains(t, body.Error, "no tax rate found for BAKERSFELD, KERN")
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rr := get(t, newTestRouter(defaultRows()), "/v1/locations/99999")
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}

func TestEmptyTableUnavailable(t *testing.T) {
	rr := get(t, newTestRouter(nil), "/v1/locations/92101")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(quote.NewService(stubResolver{}, taxtable.NewTable(nil), taxcalc.NewCalculator(taxcalc.DefaultPolicy())),
		WithCORSOrigins([]string{"https://example.test"}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/rates", nil)
	req.Header.Set("Origin", "https://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://example.test", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor_Unknown(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(eris.New("boom")))
	assert.Equal(t, http.StatusNotFound, StatusFor(&quote.NoMatchError{City: "A", County: "B"}))
}
