package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"github.com/straye-as/solar-crm-api/internal/service"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientService(t *testing.T) {
	ctx := context.Background()
	svc := setupServices(t)

	client, err := svc.clients.Create(ctx, &domain.CreateClientRequest{Name: " Maple Energy ", Email: "ops@maple.example"})
	require.NoError(t, err)

	t.Run("create trims name and defaults country", func(t *testing.T) {
		assert.Equal(t, "Maple Energy", client.Name)
		assert.Equal(t, "Canada", client.Country)

		activities, err := svc.activities.ListByTarget(ctx, domain.ActivityTargetClient, client.ID, 10)
		require.NoError(t, err)
		assert.Len(t, activities, 1)
	})

	t.Run("partial update", func(t *testing.T) {
		updated, err := svc.clients.Update(ctx, client.ID, &domain.UpdateClientRequest{City: testutil.String("Ottawa")})
		require.NoError(t, err)
		assert.Equal(t, "Ottawa", updated.City)
		assert.Equal(t, "Maple Energy", updated.Name)
	})

	t.Run("list with search", func(t *testing.T) {
		_, err := svc.clients.Create(ctx, &domain.CreateClientRequest{Name: "Other"})
		require.NoError(t, err)

		clients, total, err := svc.clients.List(ctx, 1, 20, "maple")
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, clients, 1)
		assert.Equal(t, client.ID, clients[0].ID)
	})

	t.Run("search treats wildcards literally", func(t *testing.T) {
		for _, name := range []string{"North_Star Solar", "NorthXStar Solar", "Solar 100% Co", "Solar 1000 Co"} {
			_, err := svc.clients.Create(ctx, &domain.CreateClientRequest{Name: name})
			require.NoError(t, err)
		}

		clients, total, err := svc.clients.List(ctx, 1, 20, "h_s")
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, clients, 1)
		assert.Equal(t, "North_Star Solar", clients[0].Name)

		clients, total, err = svc.clients.List(ctx, 1, 20, "100%")
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, clients, 1)
		assert.Equal(t, "Solar 100% Co", clients[0].Name)
	})

	t.Run("missing client", func(t *testing.T) {
		_, err := svc.clients.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrClientNotFound)

		_, err = svc.clients.Update(ctx, uuid.New(), &domain.UpdateClientRequest{City: testutil.String("x")})
		assert.ErrorIs(t, err, service.ErrClientNotFound)
	})
}

func TestSiteService(t *testing.T) {
	ctx := context.Background()
	svc := setupServices(t)
	client := testutil.CreateTestClient(t, svc.db, "Site Co")

	site, err := svc.sites.Create(ctx, &domain.CreateSiteRequest{ClientID: client.ID, Name: "Depot", RoofAreaM2: testutil.Float(1200)})
	require.NoError(t, err)

	t.Run("create requires an existing client", func(t *testing.T) {
		_, err := svc.sites.Create(ctx, &domain.CreateSiteRequest{ClientID: uuid.New(), Name: "Nowhere"})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("archived sites are hidden by default", func(t *testing.T) {
		archived, err := svc.sites.Create(ctx, &domain.CreateSiteRequest{ClientID: client.ID, Name: "Old depot"})
		require.NoError(t, err)
		_, err = svc.sites.Update(ctx, archived.ID, &domain.UpdateSiteRequest{IsArchived: testutil.Bool(true)})
		require.NoError(t, err)

		sites, total, err := svc.sites.List(ctx, 1, 20, repository.SiteFilters{ClientID: &client.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, sites, 1)
		assert.Equal(t, site.ID, sites[0].ID)

		_, total, err = svc.sites.List(ctx, 1, 20, repository.SiteFilters{ClientID: &client.ID, IncludeArchived: true})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("missing site", func(t *testing.T) {
		_, err := svc.sites.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrSiteNotFound)
	})
}

func TestSiteService_UploadMeterFile(t *testing.T) {
	ctx := context.Background()
	svc := setupServices(t)
	client := testutil.CreateTestClient(t, svc.db, "Meter Co")
	site := testutil.CreateTestSite(t, svc.db, client.ID, "Metered")

	t.Run("csv is stored and parsed", func(t *testing.T) {
		csv := "timestamp,kwh,kw\n2024-03-01T00:00:00Z,4.2,16.8\n2024-03-01T00:15:00Z,4.0,\n"
		file, n, err := svc.sites.UploadMeterFile(ctx, site.ID, "march.csv", "text/csv", strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, "march.csv", file.FileName)
		assert.Equal(t, int64(len(csv)), file.Size)
		assert.True(t, strings.HasPrefix(file.StoragePath, "meter-files/"+site.ID.String()+"/"))

		count, err := svc.meterFiles.CountReadings(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		files, err := svc.sites.ListMeterFiles(ctx, site.ID)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("non csv is stored without readings", func(t *testing.T) {
		file, n, err := svc.sites.UploadMeterFile(ctx, site.ID, "export.xml", "application/xml", strings.NewReader("<usage/>"))
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NotEmpty(t, file.StoragePath)
	})

	t.Run("rejects unknown extension", func(t *testing.T) {
		_, _, err := svc.sites.UploadMeterFile(ctx, site.ID, "run.exe", "application/octet-stream", strings.NewReader("x"))
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		big := strings.Repeat("a", testMaxUploadSize+1)
		_, _, err := svc.sites.UploadMeterFile(ctx, site.ID, "big.txt", "text/plain", strings.NewReader(big))
		assert.ErrorIs(t, err, service.ErrFileTooLarge)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("rejects malformed csv", func(t *testing.T) {
		_, _, err := svc.sites.UploadMeterFile(ctx, site.ID, "bad.csv", "text/csv", strings.NewReader("2024-03-01 00:00,1\nnot a date,2\n"))
		assert.ErrorIs(t, err, service.ErrInvalidInput)
		assert.Equal(t, int64(2), testutil.CountRows(t, svc.db, &domain.MeterFile{}, "site_id = ?", site.ID))
	})

	t.Run("rejects non finite readings without storing the file", func(t *testing.T) {
		for _, csv := range []string{
			"2024-01-01 00:00,1.5\n2024-01-01 00:15,NaN\n",
			"2024-01-01 00:00,+Inf\n",
			"2024-01-01 00:00,1.5,-Inf\n",
		} {
			_, _, err := svc.sites.UploadMeterFile(ctx, site.ID, "nan.csv", "text/csv", strings.NewReader(csv))
			assert.ErrorIs(t, err, service.ErrInvalidInput, csv)
		}
		assert.Equal(t, int64(2), testutil.CountRows(t, svc.db, &domain.MeterFile{}, "site_id = ?", site.ID))
	})

	t.Run("file row is rolled back when readings fail", func(t *testing.T) {
		dup := uuid.New()
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		readings := []domain.MeterReading{
			{BaseModel: domain.BaseModel{ID: dup}, ReadingAt: at, KWh: 1},
			{BaseModel: domain.BaseModel{ID: dup}, ReadingAt: at.Add(15 * time.Minute), KWh: 2},
		}
		file := &domain.MeterFile{SiteID: site.ID, FileName: "dup.csv", StoragePath: "meter-files/dup.csv"}

		err := svc.meterFiles.CreateWithReadings(ctx, file, readings)
		require.Error(t, err)
		assert.Equal(t, int64(2), testutil.CountRows(t, svc.db, &domain.MeterFile{}, "site_id = ?", site.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.MeterReading{}, "id = ?", dup))
	})

	t.Run("unknown site", func(t *testing.T) {
		_, _, err := svc.sites.UploadMeterFile(ctx, uuid.New(), "a.csv", "text/csv", strings.NewReader(""))
		assert.ErrorIs(t, err, service.ErrSiteNotFound)
	})
}

func TestParseMeterReadings(t *testing.T) {
	t.Run("header is optional", func(t *testing.T) {
		readings, err := service.ParseMeterReadings(strings.NewReader("2024-01-01 00:00,1.5\n2024-01-01 00:15,2,7.5\n\n"))
		require.NoError(t, err)
		require.Len(t, readings, 2)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), readings[0].ReadingAt)
		assert.Equal(t, 1.5, readings[0].KWh)
		assert.Nil(t, readings[0].KW)
		require.NotNil(t, readings[1].KW)
		assert.Equal(t, 7.5, *readings[1].KW)
	})

	t.Run("zone offsets are normalised to utc", func(t *testing.T) {
		readings, err := service.ParseMeterReadings(strings.NewReader("time,kwh\n2024-01-01T05:00:00-05:00,3\n"))
		require.NoError(t, err)
		require.Len(t, readings, 1)
		assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), readings[0].ReadingAt)
	})

	t.Run("errors carry the line number", func(t *testing.T) {
		_, err := service.ParseMeterReadings(strings.NewReader("time,kwh\n2024-01-01 00:00,abc\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("nan is not a reading", func(t *testing.T) {
		_, err := service.ParseMeterReadings(strings.NewReader("time,kwh\n2024-01-01 00:00,NaN\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("single column rows are rejected", func(t *testing.T) {
		_, err := service.ParseMeterReadings(strings.NewReader("2024-01-01 00:00\n"))
		assert.Error(t, err)
	})
}

func TestPortfolioService(t *testing.T) {
	ctx := context.Background()
	svc := setupServices(t)
	client := testutil.CreateTestClient(t, svc.db, "Portfolio Co")
	siteA := testutil.CreateTestSite(t, svc.db, client.ID, "A")
	siteB := testutil.CreateTestSite(t, svc.db, client.ID, "B")
	testutil.CreateTestSimulationRun(t, svc.db, siteA.ID, testutil.Float(100000), testutil.Float(200), time.Now().UTC())

	portfolio, err := svc.portfolios.Create(ctx, &domain.CreatePortfolioRequest{ClientID: client.ID, Name: "Eastern"})
	require.NoError(t, err)

	t.Run("create requires an existing client", func(t *testing.T) {
		_, err := svc.portfolios.Create(ctx, &domain.CreatePortfolioRequest{ClientID: uuid.New(), Name: "Nope"})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("add sites appends in display order", func(t *testing.T) {
		first, err := svc.portfolios.AddSite(ctx, portfolio.ID, &domain.AddPortfolioSiteRequest{SiteID: siteA.ID})
		require.NoError(t, err)
		assert.Equal(t, 0, first.DisplayOrder)

		second, err := svc.portfolios.AddSite(ctx, portfolio.ID, &domain.AddPortfolioSiteRequest{SiteID: siteB.ID, OverrideCapexNet: testutil.Float(50000)})
		require.NoError(t, err)
		assert.Equal(t, 1, second.DisplayOrder)
	})

	t.Run("duplicate membership is a conflict", func(t *testing.T) {
		_, err := svc.portfolios.AddSite(ctx, portfolio.ID, &domain.AddPortfolioSiteRequest{SiteID: siteA.ID})
		assert.ErrorIs(t, err, service.ErrDuplicatePortfolioSite)
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("site of another client is rejected", func(t *testing.T) {
		other := testutil.CreateTestClient(t, svc.db, "Other")
		foreign := testutil.CreateTestSite(t, svc.db, other.ID, "Foreign")
		_, err := svc.portfolios.AddSite(ctx, portfolio.ID, &domain.AddPortfolioSiteRequest{SiteID: foreign.ID})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("details include memberships and kpis", func(t *testing.T) {
		details, err := svc.portfolios.GetByID(ctx, portfolio.ID)
		require.NoError(t, err)
		require.Len(t, details.Sites, 2)
		assert.Equal(t, siteA.ID, details.Sites[0].SiteID)
		assert.Equal(t, 150000.0, details.KPIs.TotalCapex)
		assert.Equal(t, 200.0, details.KPIs.TotalPvKW)
		assert.Equal(t, 2, details.KPIs.SiteCount)
	})

	t.Run("clearing an override falls back to the run", func(t *testing.T) {
		updated, err := svc.portfolios.UpdateSite(ctx, portfolio.ID, siteB.ID, &domain.UpdatePortfolioSiteRequest{ClearOverrideCapexNet: true})
		require.NoError(t, err)
		assert.Nil(t, updated.OverrideCapexNet)

		kpis, err := svc.kpis.ComputePortfolioKPIs(ctx, portfolio.ID)
		require.NoError(t, err)
		assert.Equal(t, 100000.0, kpis.TotalCapex)
	})

	t.Run("remove site", func(t *testing.T) {
		require.NoError(t, svc.portfolios.RemoveSite(ctx, portfolio.ID, siteB.ID))
		assert.ErrorIs(t, svc.portfolios.RemoveSite(ctx, portfolio.ID, siteB.ID), service.ErrPortfolioSiteNotFound)
		assert.Equal(t, int64(1), testutil.CountRows(t, svc.db, &domain.Site{}, "id = ?", siteB.ID))
	})

	t.Run("update and list", func(t *testing.T) {
		updated, err := svc.portfolios.Update(ctx, portfolio.ID, &domain.UpdatePortfolioRequest{Name: testutil.String("Eastern Canada")})
		require.NoError(t, err)
		assert.Equal(t, "Eastern Canada", updated.Name)

		portfolios, total, err := svc.portfolios.List(ctx, 1, 20, &client.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, portfolios, 1)
	})

	t.Run("missing portfolio", func(t *testing.T) {
		_, err := svc.portfolios.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrPortfolioNotFound)
	})
}
