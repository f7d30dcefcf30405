package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railmadad/complaint-api/internal/mlclient"
	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/internal/repository"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
	"github.com/railmadad/complaint-api/pkg/storage"
)

var pngImage = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

var complaintIDPattern = regexp.MustCompile(`^RM-20240301-[A-Z0-9]{6}$`)

type submitFixture struct {
	svc      *ComplaintService
	store    *memoryComplaintStore
	images   *storage.LocalStorage
	imageDir string
	locator  *stubLocator
	ocr      *stubTextReader
}

func newSubmitFixture(t *testing.T, backend issueClassifier) *submitFixture {
	t.Helper()
	dir := t.TempDir()
	images, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	f := &submitFixture{
		store:    newMemoryComplaintStore(),
		images:   images,
		imageDir: dir,
		locator: &stubLocator{match: &models.StationMatch{
			Station:    models.Station{Name: "New Delhi", Code: "NDLS"},
			DistanceKm: 0.3,
		}},
		ocr: &stubTextReader{text: "12951 Rajdhani Express Coach: B2"},
	}
	links := NewImageLinker(storage.NewSignedURLSigner("secret", time.Hour), "/api", nil)
	f.svc = NewComplaintService(
		f.store,
		NewClassifierService(backend, time.Second, nil, nil),
		newLocationService(f.locator),
		NewTicketService(f.ocr, TicketConfig{}, nil, nil),
		images,
		links,
		nil,
		nil,
		ComplaintConfig{},
		nil,
	)
	f.svc.now = fixedClock
	return f
}

func (f *submitFixture) storedImages(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.imageDir)
	require.NoError(t, err)
	return entries
}

func dirtyToiletModel() issueClassifier {
	return NewModelClassifier(&stubImageModel{prediction: &mlclient.Prediction{Success: true, Label: "dirty_toilet", Confidence: 0.87}}, 0.5)
}

func TestComplaintServiceSubmitDirtyToilet(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())

	complaint, warnings, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
		Image:         pngImage,
		ImageFilename: "toilet.png",
		Text:          "Toilet in coach B2 is filthy",
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Regexp(t, complaintIDPattern, complaint.ComplaintID)
	assert.Equal(t, models.CategoryCleanliness, complaint.IssueCategory)
	assert.Contains(t, []models.Priority{models.PriorityMedium, models.PriorityLow}, complaint.Priority)
	assert.Equal(t, models.DepartmentHousekeeping, complaint.Department)
	assert.Equal(t, models.ComplaintStatusPending, complaint.Status)
	assert.Equal(t, "Toilet in coach B2 is filthy", complaint.Description)
	assert.Equal(t, "rider-1", complaint.OwnerUserID)
	assert.Equal(t, 1, complaint.Version)
	assert.Equal(t, fixedClock(), complaint.CreatedAt)
	assert.Nil(t, complaint.Location)
	assert.Nil(t, complaint.TrainDetails)
	assert.Equal(t, 1, f.store.count())
	assert.Len(t, f.storedImages(t), 1)
	assert.Contains(t, complaint.ImageURL, "/api/complaint/"+complaint.ComplaintID+"/image?token=")
}

func TestComplaintServiceSubmitWithLocationAndTicket(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())

	complaint, warnings, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
		Image:          pngImage,
		Latitude:       "28.6430",
		Longitude:      "77.2190",
		AccuracyM:      "15",
		Ticket:         []byte("jpeg"),
		TicketFilename: "ticket.jpg",
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, complaint.Location)
	assert.Equal(t, "New Delhi", *complaint.Location.NearestStation)
	assert.Equal(t, 15.0, *complaint.Location.AccuracyM)
	require.NotNil(t, complaint.TrainDetails)
	assert.Equal(t, "12951", *complaint.TrainDetails.TrainNumber)
	assert.Equal(t, models.TrainSourceOCR, complaint.TrainDetails.Source)
	assert.Equal(t, "Issue category: dirty toilet", complaint.Description)
}

func TestComplaintServiceClassificationFailureStoresNothing(t *testing.T) {
	f := newSubmitFixture(t, &stubClassifier{err: errors.New("model offline")})

	complaint, _, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
		Image:     pngImage,
		Latitude:  "28.6",
		Longitude: "77.2",
	})
	require.Error(t, err)
	assert.Nil(t, complaint)
	assert.True(t, appErrors.Is(err, appErrors.ErrClassificationFailed))
	assert.Zero(t, f.store.count())
	assert.Zero(t, f.store.creates)
	assert.Empty(t, f.storedImages(t))
}

func TestComplaintServiceTicketFailureIsNotFatal(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())
	f.ocr.err = errors.New("ocr timeout")

	complaint, warnings, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
		Image:          pngImage,
		Ticket:         []byte("%PDF"),
		TicketFilename: "ticket.pdf",
	})
	require.NoError(t, err)
	assert.Nil(t, complaint.TrainDetails)
	require.Len(t, warnings, 1)
	assert.Equal(t, appErrors.ErrExtractionFailed.Code, warnings[0].Code)
	assert.Equal(t, 1, f.store.count())
}

func TestComplaintServiceLocationWarnings(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon string
		locErr   error
		code     string
		located  bool
	}{
		{name: "not a number", lat: "north", lon: "77.2", code: WarningLocationInvalid},
		{name: "half pair", lat: "28.6", code: WarningLocationInvalid},
		{name: "out of range", lat: "128.6", lon: "77.2", code: WarningLocationInvalid},
		{name: "locator down", lat: "28.6", lon: "77.2", locErr: errors.New("redis down"), code: appErrors.ErrLocationUnresolved.Code, located: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSubmitFixture(t, dirtyToiletModel())
			f.locator.err = tc.locErr

			complaint, warnings, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
				Image:     pngImage,
				Latitude:  tc.lat,
				Longitude: tc.lon,
			})
			require.NoError(t, err)
			require.Len(t, warnings, 1)
			assert.Equal(t, tc.code, warnings[0].Code)
			assert.Equal(t, tc.located, complaint.Location != nil)
		})
	}
}

func TestComplaintServiceNegativeAccuracyIsWarning(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())

	complaint, warnings, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
		Image:     pngImage,
		Latitude:  "28.6",
		Longitude: "77.2",
		AccuracyM: "-500",
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningLocationInvalid, warnings[0].Code)
	require.NotNil(t, complaint.Location)
	assert.Nil(t, complaint.Location.AccuracyM)
}

func TestComplaintServiceManualTrainDetails(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())

	complaint, warnings, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
		Image:            pngImage,
		TrainDetailsJSON: `{"train_number": 12951, "coachNumber": "B2", "seat_number": " "}`,
		Ticket:           []byte("jpeg"),
		TicketFilename:   "ticket.jpg",
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, complaint.TrainDetails)
	assert.Equal(t, "12951", *complaint.TrainDetails.TrainNumber)
	assert.Equal(t, "B2", *complaint.TrainDetails.CoachNumber)
	assert.Nil(t, complaint.TrainDetails.SeatNumber)
	assert.Equal(t, models.TrainSourceManual, complaint.TrainDetails.Source)
	assert.Empty(t, f.ocr.mimeType, "ticket OCR skipped when manual details are present")
}

func TestComplaintServiceExtractedDetailsRoundTrip(t *testing.T) {
	number, raw := "12951", "12951 RAJDHANI EXP COACH B2"
	extracted, err := json.Marshal(models.TrainDetails{TrainNumber: &number, RawOCRText: &raw, Source: models.TrainSourceOCR})
	require.NoError(t, err)
	require.Contains(t, string(extracted), `"rawOcrText"`)

	f := newSubmitFixture(t, dirtyToiletModel())
	complaint, warnings, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
		Image:            pngImage,
		TrainDetailsJSON: string(extracted),
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, complaint.TrainDetails)
	require.NotNil(t, complaint.TrainDetails.RawOCRText)
	assert.Equal(t, raw, *complaint.TrainDetails.RawOCRText)
	assert.Equal(t, models.TrainSourceOCR, complaint.TrainDetails.Source)
}

func TestComplaintServiceMalformedTrainDetailsIsWarning(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())

	complaint, warnings, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{
		Image:            pngImage,
		TrainDetailsJSON: `{"train_number":`,
	})
	require.NoError(t, err)
	assert.Nil(t, complaint.TrainDetails)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningTrainDetailsInvalid, warnings[0].Code)
}

func TestComplaintServiceRegeneratesCollidingID(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())
	f.store.createErrs = []error{repository.ErrDuplicate, nil}
	ids := []string{"RM-20240301-AAAAAA", "RM-20240301-BBBBBB"}
	f.svc.newID = func(time.Time) (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	complaint, _, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{Image: pngImage})
	require.NoError(t, err)
	assert.Equal(t, "RM-20240301-BBBBBB", complaint.ComplaintID)
	assert.Equal(t, 2, f.store.creates)
}

func TestComplaintServicePersistFailureRemovesImage(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())
	f.store.createErrs = []error{errors.New("connection reset")}

	_, _, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{Image: pngImage})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, f.storedImages(t))

	f.store.createErrs = []error{repository.ErrDuplicate, repository.ErrDuplicate, repository.ErrDuplicate, repository.ErrDuplicate}
	_, _, err = f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{Image: pngImage})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, f.storedImages(t))
}

func TestComplaintServiceSubmitRejections(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())

	_, _, err := f.svc.Submit(context.Background(), nil, models.ComplaintSubmission{Image: pngImage})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, _, err = f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{Image: []byte("plain text, not an image")})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	assert.Zero(t, f.store.count())
}

func TestComplaintServiceAnonymousSubmitUsesGuest(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())
	f.svc.SetGuestOwner(&models.JWTClaims{UserID: "guest-1", Role: models.RoleRider})

	complaint, _, err := f.svc.Submit(context.Background(), nil, models.ComplaintSubmission{Image: pngImage})
	require.NoError(t, err)
	assert.Equal(t, "guest-1", complaint.OwnerUserID)

	complaint, _, err = f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{Image: pngImage})
	require.NoError(t, err)
	assert.Equal(t, "rider-1", complaint.OwnerUserID)
}

func TestComplaintServiceOpenImage(t *testing.T) {
	f := newSubmitFixture(t, dirtyToiletModel())
	complaint, _, err := f.svc.Submit(context.Background(), riderActor("rider-1"), models.ComplaintSubmission{Image: pngImage})
	require.NoError(t, err)

	u, err := url.Parse(complaint.ImageURL)
	require.NoError(t, err)
	token := u.Query().Get("token")

	file, mimeType, err := f.svc.OpenImage(context.Background(), complaint.ComplaintID, token)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, pngImage, data)
	assert.Equal(t, "image/png", mimeType)

	_, _, err = f.svc.OpenImage(context.Background(), "RM-20240301-OTHER1", token)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, _, err = f.svc.OpenImage(context.Background(), complaint.ComplaintID, "garbage")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestGenerateComplaintID(t *testing.T) {
	id, err := GenerateComplaintID(fixedClock())
	require.NoError(t, err)
	assert.Regexp(t, complaintIDPattern, id)
}
