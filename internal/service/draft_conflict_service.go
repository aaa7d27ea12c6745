package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
	"github.com/noah-isme/coop-registration-api/pkg/export"
)

type draftClaimReader interface {
	ListClaimsForSession(ctx context.Context, sessionID string) ([]models.DraftEntryClaim, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// DraftConflictService reports slots claimed by more than one draft entry within a session.
type DraftConflictService struct {
	claims   draftClaimReader
	sessions sessionReader
	cache    *CacheService
	cacheTTL time.Duration
	pdf      pdfRenderer
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewDraftConflictService constructs the service. A nil renderer falls back to the default PDF exporter.
func NewDraftConflictService(claims draftClaimReader, sessions sessionReader, cache *CacheService, cacheTTL time.Duration, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger) *DraftConflictService {
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftConflictService{
		claims:   claims,
		sessions: sessions,
		cache:    cache,
		cacheTTL: cacheTTL,
		pdf:      pdf,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Detect returns every contested slot of the session, serving from cache when possible.
func (s *DraftConflictService) Detect(ctx context.Context, sessionID string) (*dto.ConflictReport, error) {
	key := ConflictReportKey(sessionID)
	var cached dto.ConflictReport
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return nil, lookupError(err, "session not found", "failed to load session")
	}
	claims, err := s.claims.ListClaimsForSession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft entries")
	}

	report := &dto.ConflictReport{
		SessionID:   sessionID,
		GeneratedAt: s.now().UTC(),
		Conflicts:   DetectSlotConflicts(claims),
	}
	s.metrics.SetDraftConflicts(len(report.Conflicts))
	if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
		s.logger.Debug("conflict report served uncached", zap.String("session_id", sessionID), zap.Error(err))
	}
	return report, nil
}

// Export renders the conflict report as a PDF and returns the payload with a download filename.
func (s *DraftConflictService) Export(ctx context.Context, sessionID string) ([]byte, string, error) {
	report, err := s.Detect(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	dataset := export.Dataset{Headers: []string{"Classroom", "Period", "Draft", "Creator", "Class"}}
	for _, conflict := range report.Conflicts {
		for _, claimant := range conflict.ConflictingDrafts {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Classroom": conflict.ClassroomID,
				"Period":    string(conflict.Period),
				"Draft":     claimant.DraftName,
				"Creator":   claimant.CreatorName,
				"Class":     claimant.ClassName,
			})
		}
	}
	payload, err := s.pdf.Render(dataset, fmt.Sprintf("Draft conflicts for session %s", sessionID))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render conflict report")
	}
	return payload, fmt.Sprintf("draft-conflicts-%s.pdf", sessionID), nil
}

// DetectSlotConflicts groups claims by slot key and keeps every slot claimed more than once,
// in classroom then period order. Claimants keep their input order.
func DetectSlotConflicts(claims []models.DraftEntryClaim) []models.SlotConflict {
	groups := make(map[models.SlotKey][]models.ConflictingDraft)
	for _, claim := range claims {
		key := models.NewSlotKey(claim.ClassroomID, claim.Period)
		groups[key] = append(groups[key], models.ConflictingDraft{
			DraftID:                claim.DraftID,
			DraftName:              claim.DraftName,
			CreatorName:            claim.CreatorName,
			ClassTeachingRequestID: claim.ClassTeachingRequestID,
			ClassName:              claim.ClassName,
		})
	}

	conflicts := make([]models.SlotConflict, 0)
	for key, claimants := range groups {
		if len(claimants) < 2 {
			continue
		}
		conflicts = append(conflicts, models.SlotConflict{
			ClassroomID:       key.ClassroomID,
			Period:            key.Period,
			ConflictingDrafts: claimants,
		})
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].ClassroomID != conflicts[j].ClassroomID {
			return conflicts[i].ClassroomID < conflicts[j].ClassroomID
		}
		return conflicts[i].Period.Order() < conflicts[j].Period.Order()
	})
	return conflicts
}
