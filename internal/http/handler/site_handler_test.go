package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, siteID, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sites/"+siteID+"/meter-files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withURLParams(req, map[string]string{"id": siteID})
}

func TestSiteHandler_Create(t *testing.T) {
	h := setupHandlers(t)
	client := testutil.CreateTestClient(t, h.db, "Client")

	t.Run("creates site", func(t *testing.T) {
		body := `{"clientId":"` + client.ID.String() + `","name":"Rooftop A","latitude":43.65}`
		rr := httptest.NewRecorder()
		h.site.Create(rr, httptest.NewRequest(http.MethodPost, "/sites", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rr.Code)
		var dto domain.SiteDTO
		decodeBody(t, rr, &dto)
		assert.Equal(t, client.ID, dto.ClientID)
		require.NotNil(t, dto.Latitude)
		assert.InDelta(t, 43.65, *dto.Latitude, 1e-9)
	})

	t.Run("latitude out of range", func(t *testing.T) {
		body := `{"clientId":"` + client.ID.String() + `","name":"Rooftop B","latitude":123}`
		rr := httptest.NewRecorder()
		h.site.Create(rr, httptest.NewRequest(http.MethodPost, "/sites", strings.NewReader(body)))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var apiErr domain.APIError
		decodeBody(t, rr, &apiErr)
		assert.Contains(t, apiErr.Errors, "latitude")
	})
}

func TestSiteHandler_Delete(t *testing.T) {
	h := setupHandlers(t)
	client := testutil.CreateTestClient(t, h.db, "Client")
	graph := testutil.CreateTestSiteGraph(t, h.db, client.ID, "Plant")
	id := graph.Site.ID.String()

	rr := httptest.NewRecorder()
	h.site.Delete(rr, withURLParams(httptest.NewRequest(http.MethodDelete, "/sites/"+id, nil), map[string]string{"id": id}))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, int64(0), testutil.CountRows(t, h.db, &domain.BomItem{}, ""))
	assert.Equal(t, int64(1), testutil.CountRows(t, h.db, &domain.Client{}, ""))

	rr = httptest.NewRecorder()
	h.site.Delete(rr, withURLParams(httptest.NewRequest(http.MethodDelete, "/sites/"+id, nil), map[string]string{"id": id}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSiteHandler_UploadMeterFile(t *testing.T) {
	h := setupHandlers(t)
	client := testutil.CreateTestClient(t, h.db, "Client")
	site := testutil.CreateTestSite(t, h.db, client.ID, "Plant")
	siteID := site.ID.String()

	t.Run("csv is parsed into readings", func(t *testing.T) {
		csv := "timestamp,kwh,kw\n2024-01-01 00:00,1.5,6\n2024-01-01 00:15,1.25,5\n"
		rr := httptest.NewRecorder()
		h.site.UploadMeterFile(rr, multipartUpload(t, siteID, "january.csv", csv))

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp domain.MeterFileUploadResponse
		decodeBody(t, rr, &resp)
		assert.Equal(t, 2, resp.Readings)
		assert.Equal(t, "january.csv", resp.File.FileName)
		assert.Equal(t, int64(2), testutil.CountRows(t, h.db, &domain.MeterReading{}, "meter_file_id = ?", resp.File.ID))
	})

	t.Run("xml is stored without readings", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.site.UploadMeterFile(rr, multipartUpload(t, siteID, "export.xml", "<usage/>"))

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp domain.MeterFileUploadResponse
		decodeBody(t, rr, &resp)
		assert.Equal(t, 0, resp.Readings)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.site.UploadMeterFile(rr, multipartUpload(t, siteID, "photo.png", "png"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("file over the limit", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.site.UploadMeterFile(rr, multipartUpload(t, siteID, "big.txt", strings.Repeat("x", testMaxUploadSize+1)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "no file"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/sites/"+siteID+"/meter-files", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rr := httptest.NewRecorder()
		h.site.UploadMeterFile(rr, withURLParams(req, map[string]string{"id": siteID}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("files are listed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.site.ListMeterFiles(rr, withURLParams(httptest.NewRequest(http.MethodGet, "/sites/"+siteID+"/meter-files", nil), map[string]string{"id": siteID}))

		require.Equal(t, http.StatusOK, rr.Code)
		var files []domain.MeterFileDTO
		decodeBody(t, rr, &files)
		assert.Len(t, files, 2)
	})
}
