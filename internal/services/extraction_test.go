package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/travel-extract/internal/analyzer"
	"github.com/BerylCAtieno/travel-extract/internal/cache"
	"github.com/BerylCAtieno/travel-extract/internal/category"
	"github.com/BerylCAtieno/travel-extract/internal/db"
	"github.com/BerylCAtieno/travel-extract/internal/extractor"
	"github.com/BerylCAtieno/travel-extract/internal/models"
	"github.com/BerylCAtieno/travel-extract/internal/repository"
	"github.com/BerylCAtieno/travel-extract/internal/testutil"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

const flightText = "Flight UA456 departs SFO March 15 2024 10:30 arrives JFK 19:15"

type fixture struct {
	svc   *ExtractionService
	model *testutil.FakeModel
	repo  repository.BookingRepository
}

func newFixture(t *testing.T, reply string) *fixture {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "travel.db")
	require.NoError(t, db.RunMigrations(dbFile))
	conn, err := db.NewSQLiteDB(dbFile)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	model := &testutil.FakeModel{Reply: reply}
	repo := repository.NewRepository(conn)
	svc := NewExtractionService(Deps{
		Extractor: extractor.New(extractor.Config{}, nil),
		Model:     model,
		Repo:      repo,
	})
	return &fixture{svc: svc, model: model, repo: repo}
}

func (f *fixture) rows(t *testing.T, c category.Category) []*models.BookingRecord {
	t.Helper()
	recs, err := f.repo.List(context.Background(), c, 100)
	require.NoError(t, err)
	return recs
}

func TestExtractUploadPlainTextFlight(t *testing.T) {
	f := newFixture(t, testutil.FlightReply)

	res, err := f.svc.ExtractUpload(context.Background(), &models.UploadRequest{
		File:        []byte(flightText),
		Filename:    "itinerary.txt",
		ContentType: "text/plain",
		Category:    "flights",
	})
	require.NoError(t, err)

	assert.Equal(t, "flight", res.DocumentType)
	def, _ := category.Lookup(category.Flight)
	assert.Len(t, res.Fields, def.NumFields())
	airline, ok := res.Value("Airline")
	assert.True(t, ok)
	assert.NotEmpty(t, airline)
	number, ok := res.Value("Flight number")
	assert.True(t, ok)
	assert.NotEmpty(t, number)
	_, ok = res.Value("Seat")
	assert.False(t, ok)

	require.Equal(t, 1, f.model.Calls())
	assert.Contains(t, f.model.Prompts()[0], flightText)

	rows := f.rows(t, category.Flight)
	require.Len(t, rows, 1)
	assert.Equal(t, models.SourceUpload, rows[0].Source)
	assert.Equal(t, "itinerary.txt", rows[0].SourceDescription)
	assert.Equal(t, testutil.FlightReply, rows[0].RawReply)
}

func TestExtractUploadBlankPDFFailsBeforeModel(t *testing.T) {
	f := newFixture(t, testutil.FlightReply)

	_, err := f.svc.ExtractUpload(context.Background(), &models.UploadRequest{
		File:        testutil.BuildPDF(""),
		Filename:    "scan.pdf",
		ContentType: "application/pdf",
		Category:    "flights",
	})
	require.Error(t, err)
	assert.Equal(t, utils.KindExtractionFailed, utils.KindOf(err))
	assert.NotEqual(t, utils.KindMalformedJSON, utils.KindOf(err))
	assert.Zero(t, f.model.Calls(), "no prompt is sent")
	assert.Empty(t, f.rows(t, category.Flight))
}

func TestExtractUploadRejections(t *testing.T) {
	tests := []struct {
		name string
		req  models.UploadRequest
		want utils.ErrorKind
	}{
		{
			name: "no file",
			req:  models.UploadRequest{Filename: "a.txt", Category: "flights"},
			want: utils.KindValidation,
		},
		{
			name: "no category",
			req:  models.UploadRequest{File: []byte(flightText), Filename: "a.txt"},
			want: utils.KindValidation,
		},
		{
			name: "bogus category",
			req:  models.UploadRequest{File: []byte(flightText), Filename: "a.txt", Category: "bogus"},
			want: utils.KindUnknownCategory,
		},
		{
			name: "unsupported media",
			req:  models.UploadRequest{File: []byte("PK"), Filename: "a.docx", ContentType: "application/zip", Category: "event"},
			want: utils.KindUnsupportedMediaKind,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testutil.FlightReply)
			req := tt.req
			_, err := f.svc.ExtractUpload(context.Background(), &req)
			require.Error(t, err)
			assert.Equal(t, tt.want, utils.KindOf(err))
			assert.Zero(t, f.model.Calls())
		})
	}
}

func TestExtractUploadReplyErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  utils.ErrorKind
	}{
		{"empty", "   ", utils.KindEmptyReply},
		{"no json", "Sorry, I cannot help with that.", utils.KindNoJSONFound},
		{"malformed", "Result: {not json}", utils.KindMalformedJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.reply)
			_, err := f.svc.ExtractUpload(context.Background(), &models.UploadRequest{
				File: []byte(flightText), Filename: "a.txt", Category: "flights",
			})
			require.Error(t, err)
			assert.Equal(t, tt.want, utils.KindOf(err))

			var appErr *utils.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.reply, appErr.Details, "raw reply kept for diagnostics")
			assert.Empty(t, f.rows(t, category.Flight))
		})
	}
}

func TestRetriedUploadBypassesCachedBadReply(t *testing.T) {
	f := newFixture(t, "Sorry, I cannot help with that.")
	cached := analyzer.NewCachedModel(f.model, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil, nil)
	svc := NewExtractionService(Deps{
		Extractor: extractor.New(extractor.Config{}, nil),
		Model:     cached,
		Repo:      f.repo,
	})
	req := func() *models.UploadRequest {
		return &models.UploadRequest{File: []byte(flightText), Filename: "a.txt", Category: "flights"}
	}

	_, err := svc.ExtractUpload(context.Background(), req())
	require.Error(t, err)
	assert.Equal(t, utils.KindNoJSONFound, utils.KindOf(err))

	f.model.Reply = testutil.FlightReply
	res, err := svc.ExtractUpload(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, "flight", res.DocumentType)
	assert.Equal(t, 2, f.model.Calls(), "the retry reaches the model")
	assert.Len(t, f.rows(t, category.Flight), 1)
}

func TestExtractUploadUpstreamFailure(t *testing.T) {
	f := newFixture(t, "")
	f.model.Err = errors.New("connection reset")

	_, err := f.svc.ExtractUpload(context.Background(), &models.UploadRequest{
		File: []byte(flightText), Filename: "a.txt", Category: "flights",
	})
	assert.Equal(t, utils.KindUpstreamService, utils.KindOf(err))
}

func TestIngestEmail(t *testing.T) {
	f := newFixture(t, testutil.FlightReply)

	resp, err := f.svc.IngestEmail(context.Background(), &models.EmailRequest{
		From:    "agent@example.com",
		To:      "flights.nyc@inbound.example.com",
		Subject: "Your UA456 itinerary",
		HTML:    "<p>" + flightText + "</p>",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "flight", resp.Category)
	assert.NotEmpty(t, resp.ID)

	prompts := f.model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Subject: Your UA456 itinerary\n\n"+flightText)

	rec, err := f.svc.GetBooking(context.Background(), "flights", resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceEmail, rec.Source)
	require.NotNil(t, rec.Sender)
	assert.Equal(t, "agent@example.com", *rec.Sender)
	assert.Equal(t, "Your UA456 itinerary", rec.SourceDescription)
}

func TestIngestEmailUnknownCategoryWritesNoRow(t *testing.T) {
	f := newFixture(t, testutil.FlightReply)

	_, err := f.svc.IngestEmail(context.Background(), &models.EmailRequest{
		From: "agent@example.com",
		To:   "unknown-category@domain",
		Text: flightText,
	})
	require.Error(t, err)
	assert.Equal(t, utils.KindUnknownCategory, utils.KindOf(err))
	assert.Zero(t, f.model.Calls())
	for _, def := range category.All() {
		assert.Empty(t, f.rows(t, def.Category), def.Table)
	}
}

func TestIngestEmailValidation(t *testing.T) {
	f := newFixture(t, testutil.FlightReply)
	for _, req := range []models.EmailRequest{
		{From: "a@x.io", Text: "hi"},
		{To: "flights@x.io", Text: "hi"},
		{From: "a@x.io", To: "flights@x.io", Text: " ", HTML: ""},
	} {
		req := req
		_, err := f.svc.IngestEmail(context.Background(), &req)
		assert.Equal(t, utils.KindValidation, utils.KindOf(err))
	}
	assert.Zero(t, f.model.Calls())
}

func TestGetBookingNotFound(t *testing.T) {
	f := newFixture(t, testutil.FlightReply)

	_, err := f.svc.GetBooking(context.Background(), "cruise", "missing")
	assert.Equal(t, utils.KindNotFound, utils.KindOf(err))

	_, err = f.svc.ListBookings(context.Background(), "bogus", 10)
	assert.Equal(t, utils.KindUnknownCategory, utils.KindOf(err))
}

func TestExtractInfersCategory(t *testing.T) {
	f := newFixture(t, testutil.FlightReply)

	res, err := f.svc.Extract(context.Background(), models.ExtractionRequest{SourceText: flightText})
	require.NoError(t, err)
	assert.Equal(t, "flight", res.DocumentType)
	assert.Contains(t, f.model.Prompts()[0], "infer")
	assert.Empty(t, f.rows(t, category.Flight), "nothing is stored")
}

func TestJobTransitions(t *testing.T) {
	job := newJob(models.SourceUpload, utils.NopLogger())
	require.NoError(t, job.advance(StateTextExtracted))
	assert.Error(t, job.advance(StateModelInvoked), "stages cannot be skipped")

	require.NoError(t, job.advance(StatePromptBuilt))
	err := job.fail(utils.NewUpstreamError("down", nil))
	assert.Error(t, err)
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, utils.KindUpstreamService, job.FailureKind)
	assert.Error(t, job.advance(StateModelInvoked), "terminal state is final")

	assert.Equal(t, []JobState{StateReceived, StateTextExtracted, StatePromptBuilt, StateFailed}, job.History())
}
