package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lumen-edu/workbook-api/internal/dto"
	"github.com/lumen-edu/workbook-api/internal/models"
	"github.com/lumen-edu/workbook-api/internal/repository"
)

// ProgressService produces the per-student completion summary for a
// workbook. Summaries are cached in Redis with a short TTL; staleness up to
// the TTL is acceptable for this read model.
type ProgressService interface {
	GetProgress(ctx context.Context, workbookID, studentID uint) (dto.ProgressSummaryResponse, error)
}

type progressService struct {
	submissions repository.PageSubmissionRepository
	workbooks   repository.WorkbookRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewProgressService builds the progress aggregator.
func NewProgressService(subRepo repository.PageSubmissionRepository, workbookRepo repository.WorkbookRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ProgressService {
	return &progressService{
		submissions: subRepo,
		workbooks:   workbookRepo,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "progress_service").Logger(),
	}
}

func (s *progressService) GetProgress(ctx context.Context, workbookID, studentID uint) (dto.ProgressSummaryResponse, error) {
	cacheKey := fmt.Sprintf("progress:workbook:%d:student:%d", workbookID, studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.ProgressSummaryResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("workbook_id", workbookID).Uint("student_id", studentID).Msg("progress cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}
	}

	if _, err := s.workbooks.GetByID(ctx, workbookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProgressSummaryResponse{}, ErrWorkbookNotFound
		}
		return dto.ProgressSummaryResponse{}, err
	}

	expected, err := s.workbooks.PagesByWorkbook(ctx, workbookID)
	if err != nil {
		return dto.ProgressSummaryResponse{}, err
	}

	response := dto.ProgressSummaryResponse{
		WorkbookID: workbookID,
		StudentID:  studentID,
		TotalPages: len(expected),
	}

	ledger, err := s.submissions.GetByWorkbookAndStudent(ctx, workbookID, studentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ProgressSummaryResponse{}, err
	}

	// No ledger yet is a valid empty summary, not an error.
	if err == nil {
		for _, page := range ledger.PageList() {
			response.Submitted++
			switch page.Status() {
			case models.PageStatusPassed:
				response.Passed++
			case models.PageStatusRejected:
				response.Rejected++
			default:
				response.PendingReview++
			}
		}
		response.IsComplete = len(expected) > 0 && response.Passed >= len(expected)
		response.LastSubmittedAt = ledger.LastSubmittedAt
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store progress cache")
			}
		}
	}

	return response, nil
}
