package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/lumen-edu/workbook-api/internal/dto"
	"github.com/lumen-edu/workbook-api/internal/match"
	"github.com/lumen-edu/workbook-api/internal/models"
	"github.com/lumen-edu/workbook-api/internal/observability"
	"github.com/lumen-edu/workbook-api/internal/phash"
	"github.com/lumen-edu/workbook-api/internal/repository"
)

// ErrSubmissionNotFound indicates no ledger exists for the student yet.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrPageNotFound indicates the ledger holds no entry for the page number.
var ErrPageNotFound = errors.New("submitted page not found")

// ReviewerActor identifies the reviewer performing an operation.
type ReviewerActor struct {
	ID   uint
	Role string
}

// ReviewService covers reviewer-driven operations on a ledger: similarity
// re-checks, manual verdicts, comments, and the reviewer view itself.
type ReviewService interface {
	Recheck(ctx context.Context, payload dto.RecheckRequest) (dto.RecheckResponse, error)
	SetPageVerdict(ctx context.Context, payload dto.VerdictRequest, reviewer ReviewerActor) (dto.VerdictResponse, error)
	Comment(ctx context.Context, payload dto.CommentRequest, reviewer ReviewerActor) (dto.LedgerResponse, error)
	Ledger(ctx context.Context, workbookID, studentID uint) (dto.LedgerResponse, error)
	ListLedgers(ctx context.Context, workbookID uint) ([]dto.LedgerResponse, error)
}

type reviewService struct {
	submissions repository.PageSubmissionRepository
	workbooks   repository.WorkbookRepository
	validator   *validator.Validate
	events      EventPublisher
	thresholds  match.Thresholds
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReviewService constructs a ReviewService instance.
func NewReviewService(subRepo repository.PageSubmissionRepository, workbookRepo repository.WorkbookRepository, validate *validator.Validate, events EventPublisher, thresholds match.Thresholds, logger zerolog.Logger) ReviewService {
	return &reviewService{
		submissions: subRepo,
		workbooks:   workbookRepo,
		validator:   validate,
		events:      events,
		thresholds:  thresholds,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "review_service").Logger(),
		now:         time.Now,
	}
}

// Recheck recomputes similarity for every page a reviewer has not locked.
// Locked pages keep their verdict and similarity but are still reported.
// Running twice without intervening writes yields identical output.
func (s *reviewService) Recheck(ctx context.Context, payload dto.RecheckRequest) (dto.RecheckResponse, error) {
	tracer := otel.Tracer("github.com/lumen-edu/workbook-api/internal/service/review")
	ctx, span := tracer.Start(ctx, "review.recheck")
	span.SetAttributes(
		attribute.Int64("review.workbook_id", int64(payload.WorkbookID)),
		attribute.Int64("review.student_id", int64(payload.StudentID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.RecheckResponse{}, err
	}

	ledger, expected, err := s.loadLedger(ctx, payload.WorkbookID, payload.StudentID)
	if err != nil {
		span.RecordError(err)
		return dto.RecheckResponse{}, err
	}

	canonical := make(map[int]string, len(expected))
	for _, page := range expected {
		canonical[page.PageNumber] = page.Fingerprint
	}

	pages := ledger.PageList()
	results := make([]dto.RecheckPageResult, 0, len(pages))
	changed := false

	for i, page := range pages {
		if page.ManuallyReviewed {
			results = append(results, dto.RecheckPageResult{
				PageNumber:       page.PageNumber,
				Similarity:       page.Similarity,
				Passed:           page.Passed,
				ManuallyReviewed: true,
			})
			continue
		}

		similarity := phash.Similarity(page.Fingerprint, canonical[page.PageNumber], s.thresholds.HashBits)
		passed := similarity >= s.thresholds.Acceptance

		if page.Similarity == nil || *page.Similarity != similarity || page.Passed != passed {
			changed = true
		}

		if page.Passed && !passed && s.events != nil {
			s.events.Publish(ctx, ReconcileEvent{
				Type:       EventPageRejected,
				WorkbookID: payload.WorkbookID,
				StudentID:  payload.StudentID,
				PageNumber: page.PageNumber,
				Similarity: &similarity,
				OccurredAt: s.now(),
			})
		}

		pages[i].Similarity = &similarity
		pages[i].Passed = passed

		results = append(results, dto.RecheckPageResult{
			PageNumber: page.PageNumber,
			Similarity: pages[i].Similarity,
			Passed:     passed,
		})
	}

	if changed {
		ledger.SetPages(pages)
		if err := s.submissions.Update(ctx, &ledger); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ledger_write_failed")
			return dto.RecheckResponse{}, err
		}
	}

	observability.ReconcileOps().WithLabelValues("recheck").Inc()
	s.logger.Info().
		Uint("workbook_id", payload.WorkbookID).
		Uint("student_id", payload.StudentID).
		Bool("changed", changed).
		Msg("similarity recheck completed")

	return dto.RecheckResponse{
		Results:        results,
		PassedCount:    ledger.PassedCount,
		TotalSubmitted: len(pages),
		TotalPages:     len(expected),
	}, nil
}

// SetPageVerdict records a reviewer decision on one page. This is the only
// path that sets the manual-review lock.
func (s *reviewService) SetPageVerdict(ctx context.Context, payload dto.VerdictRequest, reviewer ReviewerActor) (dto.VerdictResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.VerdictResponse{}, err
	}

	ledger, expected, err := s.loadLedger(ctx, payload.WorkbookID, payload.StudentID)
	if err != nil {
		return dto.VerdictResponse{}, err
	}

	pages := ledger.PageList()
	found := false
	now := s.now()

	for i, page := range pages {
		if page.PageNumber != payload.PageNumber {
			continue
		}

		pages[i].Passed = *payload.Passed
		pages[i].ManuallyReviewed = true
		pages[i].ReviewedAt = &now
		reviewerID := reviewer.ID
		pages[i].ReviewedBy = &reviewerID
		found = true

		if s.events != nil {
			s.events.Publish(ctx, ReconcileEvent{
				Type:       EventVerdictSet,
				WorkbookID: payload.WorkbookID,
				StudentID:  payload.StudentID,
				PageNumber: payload.PageNumber,
				Passed:     *payload.Passed,
				ReviewerID: &reviewerID,
				OccurredAt: now,
			})
		}
		break
	}

	if !found {
		return dto.VerdictResponse{}, ErrPageNotFound
	}

	ledger.SetPages(pages)
	if err := s.submissions.Update(ctx, &ledger); err != nil {
		return dto.VerdictResponse{}, err
	}

	observability.ReconcileOps().WithLabelValues("verdict").Inc()
	s.logger.Info().
		Uint("workbook_id", payload.WorkbookID).
		Uint("student_id", payload.StudentID).
		Int("page_number", payload.PageNumber).
		Bool("passed", *payload.Passed).
		Uint("reviewer_id", reviewer.ID).
		Msg("page verdict set")

	return dto.VerdictResponse{
		PassedCount: ledger.PassedCount,
		TotalPages:  len(expected),
	}, nil
}

// Comment attaches a teacher comment to the ledger. Comment state is
// independent of page state.
func (s *reviewService) Comment(ctx context.Context, payload dto.CommentRequest, reviewer ReviewerActor) (dto.LedgerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.LedgerResponse{}, err
	}

	ledger, expected, err := s.loadLedger(ctx, payload.WorkbookID, payload.StudentID)
	if err != nil {
		return dto.LedgerResponse{}, err
	}

	now := s.now()
	reviewerID := reviewer.ID
	ledger.TeacherComment = strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment))
	ledger.CommentedAt = &now
	ledger.CommentedBy = &reviewerID

	if err := s.submissions.Update(ctx, &ledger); err != nil {
		return dto.LedgerResponse{}, err
	}

	return dto.NewLedgerResponse(ledger, len(expected)), nil
}

// Ledger returns the reviewer view with per-page derived status.
func (s *reviewService) Ledger(ctx context.Context, workbookID, studentID uint) (dto.LedgerResponse, error) {
	ledger, expected, err := s.loadLedger(ctx, workbookID, studentID)
	if err != nil {
		return dto.LedgerResponse{}, err
	}

	return dto.NewLedgerResponse(ledger, len(expected)), nil
}

// ListLedgers returns every student ledger for a workbook, most recently
// submitted first.
func (s *reviewService) ListLedgers(ctx context.Context, workbookID uint) ([]dto.LedgerResponse, error) {
	if _, err := s.workbooks.GetByID(ctx, workbookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkbookNotFound
		}
		return nil, err
	}

	expected, err := s.workbooks.PagesByWorkbook(ctx, workbookID)
	if err != nil {
		return nil, err
	}

	ledgers, err := s.submissions.ListByWorkbook(ctx, workbookID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.LedgerResponse, 0, len(ledgers))
	for _, ledger := range ledgers {
		responses = append(responses, dto.NewLedgerResponse(ledger, len(expected)))
	}

	return responses, nil
}

func (s *reviewService) loadLedger(ctx context.Context, workbookID, studentID uint) (models.PageSubmission, []models.ExpectedPage, error) {
	if _, err := s.workbooks.GetByID(ctx, workbookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PageSubmission{}, nil, ErrWorkbookNotFound
		}
		return models.PageSubmission{}, nil, err
	}

	ledger, err := s.submissions.GetByWorkbookAndStudent(ctx, workbookID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PageSubmission{}, nil, ErrSubmissionNotFound
		}
		return models.PageSubmission{}, nil, err
	}

	expected, err := s.workbooks.PagesByWorkbook(ctx, workbookID)
	if err != nil {
		return models.PageSubmission{}, nil, err
	}

	return ledger, expected, nil
}
