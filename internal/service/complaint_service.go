package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/internal/ocr"
	"github.com/railmadad/complaint-api/internal/repository"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

// Warning codes attached to submissions that succeeded with degraded input.
const (
	WarningTrainDetailsInvalid = "TRAIN_DETAILS_INVALID"
	WarningLocationInvalid     = "LOCATION_INVALID"
)

const (
	complaintIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	complaintIDAttempts = 4
)

type complaintWriter interface {
	Create(ctx context.Context, complaint *models.Complaint) error
}

type locationResolver interface {
	Resolve(ctx context.Context, req models.LocationRequest) (*models.Location, *models.Warning, error)
}

type ticketExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*models.TrainDetails, error)
}

type imageStore interface {
	SaveStream(filename string, r io.Reader) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// ComplaintConfig bounds complaint photo uploads.
type ComplaintConfig struct {
	MaxImageBytes     int64
	AllowedImageMIMEs []string
}

// ComplaintService assembles and persists new complaints.
type ComplaintService struct {
	repo       complaintWriter
	classifier issueClassifier
	locations  locationResolver
	tickets    ticketExtractor
	images     imageStore
	links      *ImageLinker
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	config     ComplaintConfig
	guest      *models.JWTClaims
	now        func() time.Time
	newID      func(time.Time) (string, error)
}

// NewComplaintService constructs a ComplaintService.
func NewComplaintService(
	repo complaintWriter,
	classifier issueClassifier,
	locations locationResolver,
	tickets ticketExtractor,
	images imageStore,
	links *ImageLinker,
	cache *CacheService,
	metrics *MetricsService,
	config ComplaintConfig,
	logger *zap.Logger,
) *ComplaintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = 10 * 1024 * 1024
	}
	if len(config.AllowedImageMIMEs) == 0 {
		config.AllowedImageMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	return &ComplaintService{
		repo:       repo,
		classifier: classifier,
		locations:  locations,
		tickets:    tickets,
		images:     images,
		links:      links,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		config:     config,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      GenerateComplaintID,
	}
}

// SetGuestOwner sets the account that owns complaints submitted without
// authentication. A nil owner makes Submit require an actor.
func (s *ComplaintService) SetGuestOwner(owner *models.JWTClaims) {
	s.guest = owner
}

// Submit classifies the photo, resolves optional location and train details
// concurrently and stores the complaint. Only a classification failure
// rejects the submission; other failures come back as warnings.
func (s *ComplaintService) Submit(ctx context.Context, actor *models.JWTClaims, in models.ComplaintSubmission) (*models.Complaint, []models.Warning, error) {
	if actor == nil || actor.UserID == "" {
		actor = s.guest
	}
	if actor == nil || actor.UserID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	mimeType, err := s.validateImage(in.Image)
	if err != nil {
		return nil, nil, err
	}
	text := strings.TrimSpace(in.Text)

	var (
		warnings     []models.Warning
		verdict      *models.Classification
		location     *models.Location
		locationWarn *models.Warning
		train        *models.TrainDetails
		ticketWarn   *models.Warning
	)

	locReq, hasLocation, locErr := parseLocationFields(in.Latitude, in.Longitude, in.AccuracyM)
	if locErr != nil {
		warnings = append(warnings, s.softFailure(WarningLocationInvalid, "location ignored: "+locErr.Error()))
	} else if hasLocation && locReq.AccuracyM == nil && strings.TrimSpace(in.AccuracyM) != "" {
		warnings = append(warnings, s.softFailure(WarningLocationInvalid, "accuracy ignored: must be a non-negative number"))
	}

	if raw := strings.TrimSpace(in.TrainDetailsJSON); raw != "" {
		manual, err := parseManualTrainDetails(raw)
		if err != nil {
			warnings = append(warnings, s.softFailure(WarningTrainDetailsInvalid, "train details ignored: "+err.Error()))
		} else if !manual.Empty() {
			train = manual
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.classifier.Classify(gctx, in.Image, mimeType, text)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	if hasLocation && s.locations != nil {
		g.Go(func() error {
			loc, warn, err := s.locations.Resolve(gctx, locReq)
			if err != nil {
				w := s.softFailure(WarningLocationInvalid, "location ignored: "+appErrors.FromError(err).Message)
				locationWarn = &w
				return nil
			}
			location, locationWarn = loc, warn
			return nil
		})
	}
	if train == nil && len(in.Ticket) > 0 && s.tickets != nil {
		g.Go(func() error {
			td, err := s.tickets.Extract(gctx, in.TicketFilename, in.Ticket)
			if err != nil {
				w := s.softFailure(appErrors.ErrExtractionFailed.Code, appErrors.FromError(err).Message)
				ticketWarn = &w
				return nil
			}
			train = td
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if appErrors.Is(err, appErrors.ErrClassificationFailed) {
			return nil, nil, err
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrClassificationFailed.Code, appErrors.ErrClassificationFailed.Status, appErrors.ErrClassificationFailed.Message)
	}
	if locationWarn != nil {
		warnings = append(warnings, *locationWarn)
	}
	if ticketWarn != nil {
		warnings = append(warnings, *ticketWarn)
	}

	description := text
	if description == "" {
		description = verdict.ComplaintDescription
	}
	createdAt := s.now()
	complaint := &models.Complaint{
		OwnerUserID:   actor.UserID,
		Description:   description,
		IssueCategory: verdict.IssueCategory,
		IssueDetails:  verdict.IssueDetails,
		Priority:      verdict.Priority,
		Department:    verdict.Department,
		Status:        models.ComplaintStatusPending,
		AIConfidence:  verdict.Confidence,
		Version:       1,
		Location:      location,
		TrainDetails:  train,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}

	if s.images != nil {
		name := uuid.NewString() + extensionForMIME(mimeType)
		if _, err := s.images.SaveStream(name, bytes.NewReader(in.Image)); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store complaint image")
		}
		complaint.ImageFilename = name
	}

	if err := s.persist(ctx, complaint); err != nil {
		if complaint.ImageFilename != "" {
			if delErr := s.images.Delete(complaint.ImageFilename); delErr != nil {
				s.logger.Warn("failed to remove orphaned complaint image", zap.String("filename", complaint.ImageFilename), zap.Error(delErr))
			}
		}
		return nil, nil, err
	}

	s.cache.Invalidate(ctx, InsightsCacheKey)
	s.metrics.RecordSubmission(complaint.IssueCategory, string(complaint.Priority))
	s.logger.Info("complaint submitted",
		zap.String("complaint_id", complaint.ComplaintID),
		zap.String("category", complaint.IssueCategory),
		zap.String("priority", string(complaint.Priority)),
		zap.Int("warnings", len(warnings)),
	)

	s.links.Decorate(complaint)
	return complaint, warnings, nil
}

// OpenImage returns the stored photo addressed by a signed image token.
func (s *ComplaintService) OpenImage(ctx context.Context, complaintID, token string) (*os.File, string, error) {
	if s.images == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "image storage disabled")
	}
	filename, err := s.links.Verify(complaintID, token)
	if err != nil {
		return nil, "", err
	}
	f, err := s.images.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "image not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image")
	}
	return f, mimeForExtension(filepath.Ext(filename)), nil
}

func (s *ComplaintService) persist(ctx context.Context, complaint *models.Complaint) error {
	for attempt := 0; attempt < complaintIDAttempts; attempt++ {
		id, err := s.newID(complaint.CreatedAt)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate complaint id")
		}
		complaint.ComplaintID = id
		err = s.repo.Create(ctx, complaint)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save complaint")
		}
		s.logger.Warn("complaint id collision, regenerating", zap.String("complaint_id", id))
	}
	return appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique complaint id")
}

func (s *ComplaintService) validateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "image file is required")
	}
	if int64(len(data)) > s.config.MaxImageBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds %d bytes", s.config.MaxImageBytes))
	}
	mimeType := http.DetectContentType(data)
	for _, allowed := range s.config.AllowedImageMIMEs {
		if mimeType == allowed {
			return mimeType, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "only jpeg, png, gif or webp images are allowed")
}

func (s *ComplaintService) softFailure(code, message string) models.Warning {
	s.metrics.RecordSoftFailure(code)
	s.logger.Warn("complaint submission degraded", zap.String("code", code), zap.String("reason", message))
	return models.Warning{Code: code, Message: message}
}

// GenerateComplaintID returns an identifier of the form RM-YYYYMMDD-XXXXXX.
func GenerateComplaintID(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	base := big.NewInt(int64(len(complaintIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		suffix[i] = complaintIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("RM-%s-%s", now.UTC().Format("20060102"), suffix), nil
}

func parseLocationFields(lat, lon, accuracy string) (models.LocationRequest, bool, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" && lon == "" {
		return models.LocationRequest{}, false, nil
	}
	if lat == "" || lon == "" {
		return models.LocationRequest{}, false, errors.New("latitude and longitude must be sent together")
	}
	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return models.LocationRequest{}, false, errors.New("latitude is not a number")
	}
	lonV, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return models.LocationRequest{}, false, errors.New("longitude is not a number")
	}
	req := models.LocationRequest{Latitude: &latV, Longitude: &lonV}
	if acc := strings.TrimSpace(accuracy); acc != "" {
		if v, err := strconv.ParseFloat(acc, 64); err == nil && v >= 0 {
			req.AccuracyM = &v
		}
	}
	return req, true, nil
}

var trainDetailKeys = map[string][]string{
	"trainNumber":        {"trainNumber", "train_number"},
	"trainName":          {"trainName", "train_name"},
	"coachNumber":        {"coachNumber", "coach_number"},
	"seatNumber":         {"seatNumber", "seat_number"},
	"boardingStation":    {"boardingStation", "boarding_station"},
	"destinationStation": {"destinationStation", "destination_station"},
	"rawOcrText":         {"rawOcrText", "raw_ocr_text"},
}

// parseManualTrainDetails accepts camelCase or snake_case keys. Numbers are
// kept in their textual form.
func parseManualTrainDetails(raw string) (*models.TrainDetails, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, errors.New("train_details is not a JSON object")
	}

	pick := func(name string) *string {
		for _, key := range trainDetailKeys[name] {
			var value string
			switch v := fields[key].(type) {
			case string:
				value = strings.TrimSpace(v)
			case json.Number:
				value = v.String()
			}
			if value != "" {
				return &value
			}
		}
		return nil
	}

	td := &models.TrainDetails{
		TrainNumber:        pick("trainNumber"),
		TrainName:          pick("trainName"),
		CoachNumber:        pick("coachNumber"),
		SeatNumber:         pick("seatNumber"),
		BoardingStation:    pick("boardingStation"),
		DestinationStation: pick("destinationStation"),
		RawOCRText:         pick("rawOcrText"),
		Source:             models.TrainSourceManual,
	}
	if src, _ := fields["source"].(string); src == models.TrainSourceOCR {
		td.Source = models.TrainSourceOCR
	}
	if td.RawOCRText != nil {
		if r := []rune(*td.RawOCRText); len(r) > ocr.MaxRawTextLength {
			trimmed := string(r[:ocr.MaxRawTextLength])
			td.RawOCRText = &trimmed
		}
	}
	return td, nil
}

func mimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
