package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type mockDraftRepo struct {
	drafts      map[string]*models.Draft
	entries     map[string][]models.DraftEntry
	selections  map[string]*models.DraftSelection
	seq         int
	replaceErr  error
	selectErr   error
	deactivated []string
}

func newMockDraftRepo() *mockDraftRepo {
	return &mockDraftRepo{
		drafts:     map[string]*models.Draft{},
		entries:    map[string][]models.DraftEntry{},
		selections: map[string]*models.DraftSelection{},
	}
}

func (m *mockDraftRepo) add(id, sessionID, creatorID string, active bool, updated time.Time) *models.Draft {
	draft := &models.Draft{ID: id, SessionID: sessionID, CreatorID: creatorID, Name: "Draft " + id, IsActive: active, UpdatedAt: updated}
	m.drafts[id] = draft
	return draft
}

func (m *mockDraftRepo) DeactivateByCreator(ctx context.Context, exec sqlx.ExtContext, sessionID, creatorID string) error {
	for _, d := range m.drafts {
		if d.SessionID == sessionID && d.CreatorID == creatorID {
			d.IsActive = false
		}
	}
	m.deactivated = append(m.deactivated, creatorID)
	return nil
}

func (m *mockDraftRepo) Create(ctx context.Context, exec sqlx.ExtContext, draft *models.Draft) error {
	m.seq++
	draft.ID = fmt.Sprintf("draft-%d", m.seq)
	cp := *draft
	m.drafts[draft.ID] = &cp
	return nil
}

func (m *mockDraftRepo) List(ctx context.Context, sessionID, creatorID string) ([]models.DraftSummary, error) {
	var out []models.DraftSummary
	for _, d := range m.drafts {
		if d.SessionID == sessionID && (creatorID == "" || d.CreatorID == creatorID) {
			out = append(out, models.DraftSummary{Draft: *d, EntryCount: len(m.entries[d.ID])})
		}
	}
	return out, nil
}

func (m *mockDraftRepo) FindByID(ctx context.Context, id string) (*models.Draft, error) {
	if d, ok := m.drafts[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDraftRepo) FindActiveByCreator(ctx context.Context, sessionID, creatorID string) (*models.Draft, error) {
	for _, d := range m.drafts {
		if d.SessionID == sessionID && d.CreatorID == creatorID && d.IsActive {
			return d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockDraftRepo) FindMostRecent(ctx context.Context, sessionID string) (*models.Draft, error) {
	var latest *models.Draft
	for _, d := range m.drafts {
		if d.SessionID == sessionID && (latest == nil || d.UpdatedAt.After(latest.UpdatedAt)) {
			latest = d
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (m *mockDraftRepo) ListEntries(ctx context.Context, exec sqlx.ExtContext, draftID string) ([]models.DraftEntry, error) {
	return m.entries[draftID], nil
}

func (m *mockDraftRepo) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, draftID string, entries []models.DraftEntry) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if _, ok := m.drafts[draftID]; !ok {
		return sql.ErrNoRows
	}
	m.entries[draftID] = entries
	return nil
}

func (m *mockDraftRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.drafts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.drafts, id)
	delete(m.entries, id)
	return nil
}

func (m *mockDraftRepo) UpsertSelection(ctx context.Context, selection *models.DraftSelection) error {
	if m.selectErr != nil {
		return m.selectErr
	}
	m.selections[selection.SessionID+"|"+selection.CreatorID] = selection
	return nil
}

func (m *mockDraftRepo) FindSelection(ctx context.Context, sessionID, creatorID string) (*models.DraftSelection, error) {
	if s, ok := m.selections[sessionID+"|"+creatorID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassRequests struct {
	approved map[string]bool
}

func (m *mockClassRequests) ListApprovedByIDs(ctx context.Context, sessionID string, ids []string) ([]models.ClassTeachingRequest, error) {
	var out []models.ClassTeachingRequest
	for _, id := range ids {
		if m.approved[id] {
			out = append(out, models.ClassTeachingRequest{ID: id, SessionID: sessionID, Status: models.ClassRequestStatusApproved})
		}
	}
	return out, nil
}

func newDraftServiceForTest(repo *mockDraftRepo, cache *memoryCache) (*DraftService, *stubTx) {
	tx := &stubTx{}
	classes := &mockClassRequests{approved: map[string]bool{"class-x": true, "class-y": true}}
	cacheSvc := NewCacheService(cache, nil, time.Minute, nil, cache != nil)
	return NewDraftService(repo, newStubSessions("s1"), classes, tx, cacheSvc, nil, nil), tx
}

func TestDraftServiceCreateDeactivatesPrevious(t *testing.T) {
	repo := newMockDraftRepo()
	old := repo.add("old", "s1", "admin-1", true, time.Now())
	cache := newMemoryCache()
	svc, tx := newDraftServiceForTest(repo, cache)

	draft, err := svc.Create(context.Background(), "s1", "admin-1", dto.CreateDraftRequest{Name: "  Plan B  "})
	require.NoError(t, err)
	assert.Equal(t, "Plan B", draft.Name)
	assert.True(t, draft.IsActive)
	assert.NotEmpty(t, draft.ID)
	assert.False(t, old.IsActive)
	assert.Equal(t, 1, tx.calls)
	assert.Contains(t, cache.deleted, ConflictReportKey("s1"))
}

func TestDraftServiceCreateValidation(t *testing.T) {
	svc, _ := newDraftServiceForTest(newMockDraftRepo(), nil)

	_, err := svc.Create(context.Background(), "s1", "admin-1", dto.CreateDraftRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), "missing", "admin-1", dto.CreateDraftRequest{Name: "x"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDraftServiceListNeverNil(t *testing.T) {
	svc, _ := newDraftServiceForTest(newMockDraftRepo(), nil)

	drafts, err := svc.List(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.NotNil(t, drafts)
	assert.Empty(t, drafts)
}

func TestDraftServiceSaveEntriesCollapsesDuplicates(t *testing.T) {
	repo := newMockDraftRepo()
	repo.add("d1", "s1", "admin-1", true, time.Now())
	cache := newMemoryCache()
	svc, tx := newDraftServiceForTest(repo, cache)

	resp, err := svc.SaveEntries(context.Background(), "s1", "d1", "admin-1", dto.SaveDraftEntriesRequest{Entries: []dto.DraftEntryInput{
		{ClassTeachingRequestID: "class-x", ClassroomID: "room-1", Period: models.PeriodFirst},
		{ClassTeachingRequestID: "class-x", ClassroomID: "room-2", Period: models.PeriodSecond},
		{ClassTeachingRequestID: "class-y", ClassroomID: "room-1", Period: models.PeriodFirst},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "class-y", resp.Entries[0].ClassTeachingRequestID)
	assert.Equal(t, "room-1", resp.Entries[0].ClassroomID)
	assert.Equal(t, "room-2", resp.Entries[1].ClassroomID)
	assert.Equal(t, 1, tx.calls)
	assert.Contains(t, cache.deleted, ConflictReportKey("s1"))
}

func TestDraftServiceSaveEntriesSurvivesFailedInvalidation(t *testing.T) {
	repo := newMockDraftRepo()
	repo.add("d1", "s1", "admin-1", true, time.Now())
	cache := newMemoryCache()
	svc, _ := newDraftServiceForTest(repo, cache)
	ctx := context.Background()
	require.NoError(t, svc.cache.Set(ctx, ConflictReportKey("s1"), dto.ConflictReport{SessionID: "s1"}, 0))
	cache.deleteErr = errBoom

	resp, err := svc.SaveEntries(ctx, "s1", "d1", "admin-1", dto.SaveDraftEntriesRequest{Entries: []dto.DraftEntryInput{
		{ClassTeachingRequestID: "class-x", ClassroomID: "room-1", Period: models.PeriodFirst},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)

	var report dto.ConflictReport
	hit, err := svc.cache.Get(ctx, ConflictReportKey("s1"), &report)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDraftServiceSaveEntriesEmptyClearsDraft(t *testing.T) {
	repo := newMockDraftRepo()
	repo.add("d1", "s1", "admin-1", true, time.Now())
	repo.entries["d1"] = []models.DraftEntry{{ClassroomID: "room-1", Period: models.PeriodFirst}}
	svc, _ := newDraftServiceForTest(repo, nil)

	resp, err := svc.SaveEntries(context.Background(), "s1", "d1", "admin-1", dto.SaveDraftEntriesRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Entries)
	assert.NotNil(t, resp.Entries)
}

func TestDraftServiceSaveEntriesRejections(t *testing.T) {
	tests := []struct {
		name    string
		draftID string
		userID  string
		entries []dto.DraftEntryInput
		wantErr *appErrors.Error
	}{
		{name: "not the creator", draftID: "d1", userID: "admin-2", wantErr: appErrors.ErrForbidden},
		{name: "missing draft", draftID: "nope", userID: "admin-1", wantErr: appErrors.ErrNotFound},
		{name: "draft of another session", draftID: "d-other", userID: "admin-1", wantErr: appErrors.ErrNotFound},
		{
			name: "unapproved class", draftID: "d1", userID: "admin-1",
			entries: []dto.DraftEntryInput{{ClassTeachingRequestID: "class-z", ClassroomID: "room-1", Period: models.PeriodFirst}},
			wantErr: appErrors.ErrValidation,
		},
		{
			name: "non period slot", draftID: "d1", userID: "admin-1",
			entries: []dto.DraftEntryInput{{ClassTeachingRequestID: "class-x", ClassroomID: "room-1", Period: models.PeriodNonPeriod}},
			wantErr: appErrors.ErrValidation,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockDraftRepo()
			repo.add("d1", "s1", "admin-1", true, time.Now())
			repo.add("d-other", "s2", "admin-1", true, time.Now())
			svc, tx := newDraftServiceForTest(repo, nil)

			_, err := svc.SaveEntries(context.Background(), "s1", tc.draftID, tc.userID, dto.SaveDraftEntriesRequest{Entries: tc.entries})
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Zero(t, tx.calls)
		})
	}
}

func TestDraftServiceCurrentFallbacks(t *testing.T) {
	now := time.Now()
	repo := newMockDraftRepo()
	repo.add("mine", "s1", "admin-1", true, now.Add(-time.Hour))
	repo.add("theirs", "s1", "admin-2", true, now)
	svc, _ := newDraftServiceForTest(repo, nil)
	ctx := context.Background()

	current, err := svc.Current(ctx, "s1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "mine", current.Draft.ID)

	current, err = svc.Current(ctx, "s1", "admin-3")
	require.NoError(t, err)
	assert.Equal(t, "theirs", current.Draft.ID)

	_, err = svc.Open(ctx, "s1", "theirs", "admin-1")
	require.NoError(t, err)
	current, err = svc.Current(ctx, "s1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "theirs", current.Draft.ID)

	require.NoError(t, svc.Delete(ctx, "s1", "theirs", "admin-2"))
	current, err = svc.Current(ctx, "s1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "mine", current.Draft.ID)

	_, err = svc.Current(ctx, "s2", "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDraftServiceOpenSurvivesSelectionFailure(t *testing.T) {
	repo := newMockDraftRepo()
	repo.add("d1", "s1", "admin-1", true, time.Now())
	repo.selectErr = errBoom
	svc, _ := newDraftServiceForTest(repo, nil)

	resp, err := svc.Open(context.Background(), "s1", "d1", "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "d1", resp.Draft.ID)
}

func TestDraftServiceDeleteOnlyByCreator(t *testing.T) {
	repo := newMockDraftRepo()
	repo.add("d1", "s1", "admin-1", true, time.Now())
	svc, _ := newDraftServiceForTest(repo, nil)

	err := svc.Delete(context.Background(), "s1", "d1", "admin-2")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Contains(t, repo.drafts, "d1")

	require.NoError(t, svc.Delete(context.Background(), "s1", "d1", "admin-1"))
	assert.NotContains(t, repo.drafts, "d1")
}

func TestCollapseDraftEntriesKeepsFirstPosition(t *testing.T) {
	entries := CollapseDraftEntries([]dto.DraftEntryInput{
		{ClassTeachingRequestID: "a", ClassroomID: "room-1", Period: models.PeriodFirst},
		{ClassTeachingRequestID: "b", ClassroomID: "room-2", Period: models.PeriodFirst},
		{ClassTeachingRequestID: "c", ClassroomID: " room-1 ", Period: models.PeriodFirst},
	})
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].ClassTeachingRequestID)
	assert.Equal(t, "b", entries[1].ClassTeachingRequestID)
}

func TestDraftServiceSaveEntriesStoreFailure(t *testing.T) {
	repo := newMockDraftRepo()
	repo.add("d1", "s1", "admin-1", true, time.Now())
	repo.replaceErr = errBoom
	cache := newMemoryCache()
	svc, _ := newDraftServiceForTest(repo, cache)

	_, err := svc.SaveEntries(context.Background(), "s1", "d1", "admin-1", dto.SaveDraftEntriesRequest{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Empty(t, cache.deleted)
}
