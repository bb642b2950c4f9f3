package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/lumen-edu/workbook-api/internal/dto"
	"github.com/lumen-edu/workbook-api/internal/match"
	"github.com/lumen-edu/workbook-api/internal/models"
	"github.com/lumen-edu/workbook-api/internal/observability"
	"github.com/lumen-edu/workbook-api/internal/repository"
)

// ErrWorkbookNotFound indicates the workbook could not be located.
var ErrWorkbookNotFound = errors.New("workbook not found")

// ErrStudentNotFound indicates the student could not be located.
var ErrStudentNotFound = errors.New("student not found")

// ErrPageOutOfRange indicates the page number exceeds the workbook's page set.
var ErrPageOutOfRange = errors.New("page number out of range")

// ReconcileService merges submitted page photos into the per-student ledger.
// Single-page submission writes the asserted page directly; batch submission
// runs the matcher first.
type ReconcileService interface {
	SubmitSinglePage(ctx context.Context, payload dto.SinglePageSubmitRequest) (dto.SinglePageSubmitResponse, error)
	SubmitBatch(ctx context.Context, payload dto.BatchSubmitRequest) (dto.BatchSubmitResponse, error)
}

type reconcileService struct {
	submissions repository.PageSubmissionRepository
	workbooks   repository.WorkbookRepository
	students    repository.StudentRepository
	validator   *validator.Validate
	events      EventPublisher
	thresholds  match.Thresholds
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReconcileService constructs a ReconcileService instance.
func NewReconcileService(subRepo repository.PageSubmissionRepository, workbookRepo repository.WorkbookRepository, studentRepo repository.StudentRepository, validate *validator.Validate, events EventPublisher, thresholds match.Thresholds, logger zerolog.Logger) ReconcileService {
	return &reconcileService{
		submissions: subRepo,
		workbooks:   workbookRepo,
		students:    studentRepo,
		validator:   validate,
		events:      events,
		thresholds:  thresholds,
		logger:      logger.With().Str("component", "reconcile_service").Logger(),
		now:         time.Now,
	}
}

func (s *reconcileService) SubmitSinglePage(ctx context.Context, payload dto.SinglePageSubmitRequest) (dto.SinglePageSubmitResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SinglePageSubmitResponse{}, err
	}

	expected, err := s.loadExpectedPages(ctx, payload.WorkbookID)
	if err != nil {
		return dto.SinglePageSubmitResponse{}, err
	}

	if err := s.ensureStudent(ctx, payload.StudentID); err != nil {
		return dto.SinglePageSubmitResponse{}, err
	}

	if len(expected) > 0 && payload.PageNumber > expected[len(expected)-1].PageNumber {
		return dto.SinglePageSubmitResponse{}, ErrPageOutOfRange
	}

	ledger, created, err := s.loadOrNewLedger(ctx, payload.WorkbookID, payload.StudentID)
	if err != nil {
		return dto.SinglePageSubmitResponse{}, err
	}

	now := s.now()
	incoming := models.SubmittedPage{
		PageNumber:  payload.PageNumber,
		Fingerprint: payload.Fingerprint,
		ImageURL:    payload.ImageURL,
		SubmittedAt: now,
	}

	// Single-page submission always supersedes the prior entry for the page,
	// manually reviewed or not: it is the retry path for rejected pages.
	pages := mergePages(ledger.PageList(), []models.SubmittedPage{incoming}, false)
	ledger.SetPages(pages)
	ledger.LastSubmittedAt = now

	if err := s.persist(ctx, &ledger, created); err != nil {
		return dto.SinglePageSubmitResponse{}, err
	}

	observability.ReconcileOps().WithLabelValues("submit_single").Inc()
	s.logger.Info().
		Uint("workbook_id", payload.WorkbookID).
		Uint("student_id", payload.StudentID).
		Int("page_number", payload.PageNumber).
		Msg("single page submitted")

	return dto.SinglePageSubmitResponse{
		SavedPageNumber: payload.PageNumber,
		TotalSubmitted:  len(ledger.PageList()),
		PassedCount:     ledger.PassedCount,
		TotalPages:      len(expected),
	}, nil
}

func (s *reconcileService) SubmitBatch(ctx context.Context, payload dto.BatchSubmitRequest) (dto.BatchSubmitResponse, error) {
	tracer := otel.Tracer("github.com/lumen-edu/workbook-api/internal/service/reconcile")
	ctx, span := tracer.Start(ctx, "reconcile.submit_batch")
	span.SetAttributes(
		attribute.Int64("reconcile.workbook_id", int64(payload.WorkbookID)),
		attribute.Int64("reconcile.student_id", int64(payload.StudentID)),
		attribute.Int("reconcile.batch_size", len(payload.Images)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.BatchSubmitResponse{}, err
	}

	expected, err := s.loadExpectedPages(ctx, payload.WorkbookID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "workbook_lookup_failed")
		return dto.BatchSubmitResponse{}, err
	}

	if err := s.ensureStudent(ctx, payload.StudentID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student_lookup_failed")
		return dto.BatchSubmitResponse{}, err
	}

	ledger, created, err := s.loadOrNewLedger(ctx, payload.WorkbookID, payload.StudentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger_lookup_failed")
		return dto.BatchSubmitResponse{}, err
	}

	images := make([]match.Image, 0, len(payload.Images))
	for i, image := range payload.Images {
		images = append(images, match.Image{Index: i, Fingerprint: image.Fingerprint})
	}

	candidates := make([]match.Candidate, 0, len(expected))
	for _, page := range expected {
		candidates = append(candidates, match.Candidate{PageNumber: page.PageNumber, Fingerprint: page.Fingerprint})
	}

	startPage := nextUnpassedPage(expected, ledger)
	assignments := match.Assign(images, candidates, startPage, s.thresholds)

	now := s.now()
	incoming := make([]models.SubmittedPage, 0, len(assignments))
	results := make([]dto.BatchImageResult, 0, len(assignments))
	matched := 0

	for _, assignment := range assignments {
		result := dto.BatchImageResult{
			OriginalIndex: assignment.Index,
			PageNumber:    assignment.PageNumber,
			Similarity:    assignment.Similarity,
			Passed:        assignment.Passed,
		}
		results = append(results, result)

		if assignment.PageNumber == nil {
			observability.PagesMatched().WithLabelValues("unmatched").Inc()
			continue
		}

		matched++
		observability.PagesMatched().WithLabelValues("matched").Inc()
		observability.MatchSimilarity().Observe(assignment.Similarity)
		similarity := assignment.Similarity
		incoming = append(incoming, models.SubmittedPage{
			PageNumber:  *assignment.PageNumber,
			Fingerprint: payload.Images[assignment.Index].Fingerprint,
			ImageURL:    payload.Images[assignment.Index].ImageURL,
			Similarity:  &similarity,
			Passed:      true,
			SubmittedAt: now,
		})
	}

	// Legacy batch mode carries no manual-review protection; a matched page
	// replaces whatever was there before.
	pages := mergePages(ledger.PageList(), incoming, false)
	ledger.SetPages(pages)
	ledger.LastSubmittedAt = now

	if err := s.persist(ctx, &ledger, created); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger_write_failed")
		return dto.BatchSubmitResponse{}, err
	}

	for _, page := range incoming {
		s.publish(ctx, EventPageAccepted, payload.WorkbookID, payload.StudentID, page)
	}

	observability.ReconcileOps().WithLabelValues("submit_batch").Inc()
	span.SetAttributes(attribute.Int("reconcile.matched", matched))
	s.logger.Info().
		Uint("workbook_id", payload.WorkbookID).
		Uint("student_id", payload.StudentID).
		Int("batch_size", len(payload.Images)).
		Int("matched", matched).
		Msg("batch submitted")

	return dto.BatchSubmitResponse{
		Results: results,
		Summary: dto.BatchSummary{
			Submitted:        matched,
			NotMatched:       len(payload.Images) - matched,
			TotalPassedCount: ledger.PassedCount,
			TotalPages:       len(expected),
			IsComplete:       len(expected) > 0 && ledger.PassedCount >= len(expected),
		},
	}, nil
}

func (s *reconcileService) loadExpectedPages(ctx context.Context, workbookID uint) ([]models.ExpectedPage, error) {
	if _, err := s.workbooks.GetByID(ctx, workbookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkbookNotFound
		}
		return nil, err
	}

	return s.workbooks.PagesByWorkbook(ctx, workbookID)
}

func (s *reconcileService) ensureStudent(ctx context.Context, studentID uint) error {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	return nil
}

func (s *reconcileService) loadOrNewLedger(ctx context.Context, workbookID, studentID uint) (models.PageSubmission, bool, error) {
	ledger, err := s.submissions.GetByWorkbookAndStudent(ctx, workbookID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PageSubmission{WorkbookID: workbookID, StudentID: studentID}, true, nil
		}
		return models.PageSubmission{}, false, err
	}

	return ledger, false, nil
}

func (s *reconcileService) persist(ctx context.Context, ledger *models.PageSubmission, created bool) error {
	if created {
		return s.submissions.Create(ctx, ledger)
	}
	return s.submissions.Update(ctx, ledger)
}

func (s *reconcileService) publish(ctx context.Context, eventType string, workbookID, studentID uint, page models.SubmittedPage) {
	if s.events == nil {
		return
	}

	s.events.Publish(ctx, ReconcileEvent{
		Type:       eventType,
		WorkbookID: workbookID,
		StudentID:  studentID,
		PageNumber: page.PageNumber,
		Passed:     page.Passed,
		Similarity: page.Similarity,
		OccurredAt: page.SubmittedAt,
	})
}

// nextUnpassedPage finds the lowest expected page the student has not yet
// passed. With no prior ledger the scan starts at page 1; with every page
// passed it points just past the final page so the sequential pool is empty.
func nextUnpassedPage(expected []models.ExpectedPage, ledger models.PageSubmission) int {
	if len(expected) == 0 {
		return 1
	}

	passed := make(map[int]bool)
	for _, page := range ledger.PageList() {
		if page.Passed {
			passed[page.PageNumber] = true
		}
	}

	for _, page := range expected {
		if !passed[page.PageNumber] {
			return page.PageNumber
		}
	}

	return expected[len(expected)-1].PageNumber + 1
}

// mergePages folds incoming pages into the existing set keyed by page
// number, preferring the incoming entry. When respectManualReview is set, an
// existing manually reviewed page survives the merge untouched; both
// submission paths currently pass false, which preserves the historical
// behaviour that any resubmission supersedes a reviewer decision.
func mergePages(existing, incoming []models.SubmittedPage, respectManualReview bool) []models.SubmittedPage {
	merged := make(map[int]models.SubmittedPage, len(existing)+len(incoming))
	for _, page := range existing {
		merged[page.PageNumber] = page
	}

	for _, page := range incoming {
		if prior, ok := merged[page.PageNumber]; ok && respectManualReview && prior.ManuallyReviewed {
			continue
		}
		merged[page.PageNumber] = page
	}

	result := make([]models.SubmittedPage, 0, len(merged))
	for _, page := range merged {
		result = append(result, page)
	}

	return result
}
