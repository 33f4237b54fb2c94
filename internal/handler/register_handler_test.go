package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrocorsi/register-api/internal/service"
	"github.com/registrocorsi/register-api/pkg/jobs"
)

const registerExportFixture = "Nome completo,Ora di ingresso,Ora di uscita\n" +
	"Anna Bianchi (Organizzatore),08/07/2025 08:55:00,08/07/2025 13:02:00\n" +
	"Mario Rossi,08/07/2025 09:01:12,08/07/2025 12:58:40\n"

func newRegisterHandlerFixture() *RegisterHandler {
	svc := service.NewRegisterService(service.RegisterServiceParams{
		Config: service.RegisterConfig{ParticipantTableMarker: "Nome completo"},
	})
	return NewRegisterHandler(svc, nil)
}

func postJSON(t *testing.T, payload interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "/registers", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func TestRegisterHandlerAnalyzeInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegisterHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registers/analyze", bytes.NewReader([]byte("{broken")))
	c.Request = req

	handler.Analyze(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterHandlerAnalyzeUnrecognizedExport(t *testing.T) {
	handler := newRegisterHandlerFixture()
	w, c := postJSON(t, gin.H{"content": "just some text without a participant table"})

	handler.Analyze(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_FORMAT")
}

func TestRegisterHandlerComputeValidation(t *testing.T) {
	handler := newRegisterHandlerFixture()
	w, c := postJSON(t, gin.H{"date": "2025-07-08"})

	handler.Compute(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestRegisterHandlerComputeAdHoc(t *testing.T) {
	handler := newRegisterHandlerFixture()
	w, c := postJSON(t, service.ComputeDayRequest{
		Date:  "2025-07-08",
		Files: []service.ExportFile{{Content: registerExportFixture}},
	})

	handler.Compute(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "registro_2025_07_08.docx")
	assert.Contains(t, w.Body.String(), "Mario Rossi")
}

func TestRegisterHandlerComputeEmptyExport(t *testing.T) {
	handler := newRegisterHandlerFixture()
	w, c := postJSON(t, service.ComputeDayRequest{
		Date:  "2025-07-08",
		Files: []service.ExportFile{{Content: "Nome completo,Ora di ingresso,Ora di uscita\n"}},
	})

	handler.Compute(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "EMPTY_PARTICIPANTS")
}

func TestRegisterHandlerGetDayInvalidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegisterHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registers/c1/not-a-date", nil)
	c.Request = req
	c.Params = gin.Params{
		{Key: "courseId", Value: "c1"},
		{Key: "date", Value: "not-a-date"},
	}

	handler.GetDay(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterHandlerExportPathParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exports := service.NewExportService(nil, nil, jobs.QueueConfig{}, nil, nil)
	handler := NewRegisterHandler(nil, exports)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registers/c1/2025-07-08/export?format=xml", nil)
	c.Request = req
	c.Params = gin.Params{
		{Key: "courseId", Value: "c1"},
		{Key: "date", Value: "2025-07-08"},
	}

	handler.Export(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}
