package repository

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/garyjia/claims-intake/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var repoTime = time.Date(2018, 3, 1, 10, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_loc=UTC&_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../migrations/001_initial_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func seedUser(t *testing.T, db *sql.DB, cssID, fullName string) *models.User {
	t.Helper()

	users := NewUserRepository(db, zap.NewNop())
	user := &models.User{CSSID: cssID, FullName: fullName}
	require.NoError(t, users.Create(nil, user))
	return user
}

func setupIntakeRepo(t *testing.T) (*IntakeRepository, *models.User) {
	t.Helper()

	db := setupDB(t)
	user := seedUser(t, db, "INTAKE_USER", "Jane Intake")
	return NewIntakeRepository(db, zap.NewNop()), user
}

func inProgressIntake(user *models.User, fileNumber string, formType models.FormType, startedAt time.Time) *models.Intake {
	return &models.Intake{
		Type:              formType,
		VeteranFileNumber: fileNumber,
		DetailType:        "RampElection",
		UserID:            user.ID,
		StartedAt:         &startedAt,
	}
}

func TestIntakeCreateAndGetByID(t *testing.T) {
	repo, user := setupIntakeRepo(t)

	in := inProgressIntake(user, "64205050", models.FormTypeRampElection, repoTime)
	in.ErrorData = map[string]string{"processed_by": "David Schwimmer"}
	require.NoError(t, repo.Create(nil, in))
	require.NotZero(t, in.ID)

	got, err := repo.GetByID(in.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.FormTypeRampElection, got.Type)
	assert.Equal(t, "64205050", got.VeteranFileNumber)
	assert.Equal(t, user.ID, got.UserID)
	require.NotNil(t, got.StartedAt)
	assert.WithinDuration(t, repoTime, *got.StartedAt, time.Second)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, map[string]string{"processed_by": "David Schwimmer"}, got.ErrorData)
}

func TestIntakeGetByID_Missing(t *testing.T) {
	repo, _ := setupIntakeRepo(t)

	got, err := repo.GetByID(12345)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIntakeCreate_DuplicateInProgress(t *testing.T) {
	repo, user := setupIntakeRepo(t)

	first := inProgressIntake(user, "64205050", models.FormTypeRampElection, repoTime)
	require.NoError(t, repo.Create(nil, first))

	second := inProgressIntake(user, "64205050", models.FormTypeRampElection, repoTime.Add(time.Minute))
	err := repo.Create(nil, second)

	assert.ErrorIs(t, err, ErrDuplicateInProgress)
}

func TestIntakeCreate_DifferentKeyAllowed(t *testing.T) {
	repo, user := setupIntakeRepo(t)

	require.NoError(t, repo.Create(nil, inProgressIntake(user, "64205050", models.FormTypeRampElection, repoTime)))
	require.NoError(t, repo.Create(nil, inProgressIntake(user, "64205050", models.FormTypeAppeal, repoTime)))
	require.NoError(t, repo.Create(nil, inProgressIntake(user, "11223344", models.FormTypeRampElection, repoTime)))
}

func TestIntakeCreate_AllowedAfterCompletion(t *testing.T) {
	repo, user := setupIntakeRepo(t)

	first := inProgressIntake(user, "64205050", models.FormTypeRampElection, repoTime)
	completedAt := repoTime.Add(10 * time.Minute)
	first.CompletedAt = &completedAt
	first.CompletionStatus = models.CompletionSuccess
	require.NoError(t, repo.Create(nil, first))

	second := inProgressIntake(user, "64205050", models.FormTypeRampElection, repoTime.Add(time.Hour))
	assert.NoError(t, repo.Create(nil, second))
}

func TestIntakeUpdate(t *testing.T) {
	repo, user := setupIntakeRepo(t)

	in := inProgressIntake(user, "64205050", models.FormTypeRampElection, repoTime)
	require.NoError(t, repo.Create(nil, in))

	completedAt := repoTime.Add(20 * time.Minute)
	in.CompletedAt = &completedAt
	in.CompletionStatus = models.CompletionCanceled
	in.CancelReason = models.CancelReasonDuplicateEP
	require.NoError(t, repo.Update(nil, in))

	got, err := repo.GetByID(in.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, completedAt, *got.CompletedAt, time.Second)
	assert.Equal(t, models.CompletionCanceled, got.CompletionStatus)
	assert.Equal(t, models.CancelReasonDuplicateEP, got.CancelReason)
}

func TestFindInProgressByKey(t *testing.T) {
	repo, user := setupIntakeRepo(t)

	in := inProgressIntake(user, "64205050", models.FormTypeRampElection, repoTime)
	require.NoError(t, repo.Create(nil, in))

	got, err := repo.FindInProgressByKey("64205050", models.FormTypeRampElection, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.ID, got.ID)

	// The candidate's own row never blocks it.
	got, err = repo.FindInProgressByKey("64205050", models.FormTypeRampElection, in.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.FindInProgressByKey("64205050", models.FormTypeAppeal, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListInProgress(t *testing.T) {
	repo, user := setupIntakeRepo(t)

	older := inProgressIntake(user, "11111118", models.FormTypeRampElection, repoTime)
	require.NoError(t, repo.Create(nil, older))
	newer := inProgressIntake(user, "22222228", models.FormTypeRampElection, repoTime.Add(time.Hour))
	require.NoError(t, repo.Create(nil, newer))

	completed := inProgressIntake(user, "33333338", models.FormTypeRampElection, repoTime)
	completedAt := repoTime.Add(time.Minute)
	completed.CompletedAt = &completedAt
	completed.CompletionStatus = models.CompletionSuccess
	require.NoError(t, repo.Create(nil, completed))

	intakes, err := repo.ListInProgress()
	require.NoError(t, err)
	require.Len(t, intakes, 2)
	assert.Equal(t, newer.ID, intakes[0].ID)
	assert.Equal(t, older.ID, intakes[1].ID)
}

func TestListManagerReviewCandidates(t *testing.T) {
	repo, user := setupIntakeRepo(t)

	complete := func(in *models.Intake, at time.Time, status models.CompletionStatus, errorCode string) *models.Intake {
		in.CompletedAt = &at
		in.CompletionStatus = status
		in.ErrorCode = errorCode
		require.NoError(t, repo.Create(nil, in))
		return in
	}

	// Canceled with no later success: a candidate.
	canceled := complete(
		inProgressIntake(user, "11111118", models.FormTypeRampElection, repoTime),
		repoTime.Add(time.Minute), models.CompletionCanceled, "")

	// Errored but superseded by a later successful intake for the same
	// key: not a candidate.
	complete(
		inProgressIntake(user, "22222228", models.FormTypeRampElection, repoTime),
		repoTime.Add(time.Minute), models.CompletionError, models.ErrCodeVeteranNotValid)
	complete(
		inProgressIntake(user, "22222228", models.FormTypeRampElection, repoTime.Add(time.Hour)),
		repoTime.Add(2*time.Hour), models.CompletionSuccess, "")

	// Validation failure persisted as a completed error record. It never
	// started, so a later success does not supersede it; designation
	// filtering in the queue is what keeps it out of a manager's view.
	neverStarted := &models.Intake{
		Type:              models.FormTypeRampElection,
		VeteranFileNumber: "33333338",
		UserID:            user.ID,
	}
	failedAt := repoTime.Add(time.Minute)
	neverStarted.CompletedAt = &failedAt
	neverStarted.CompletionStatus = models.CompletionError
	neverStarted.ErrorCode = models.ErrCodeInvalidFileNumber
	require.NoError(t, repo.Create(nil, neverStarted))

	// Successful completion: never a candidate.
	complete(
		inProgressIntake(user, "44444448", models.FormTypeRampElection, repoTime),
		repoTime.Add(time.Minute), models.CompletionSuccess, "")

	// Still in progress: not a candidate.
	require.NoError(t, repo.Create(nil, inProgressIntake(user, "55555558", models.FormTypeRampElection, repoTime)))

	candidates, err := repo.ListManagerReviewCandidates()
	require.NoError(t, err)

	ids := make(map[int64]bool, len(candidates))
	for _, in := range candidates {
		ids[in.ID] = true
	}
	assert.Len(t, candidates, 2)
	assert.True(t, ids[canceled.ID])
	assert.True(t, ids[neverStarted.ID])
}

func TestUserRepository(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db, zap.NewNop())

	user := &models.User{CSSID: "CSS_FULL", FullName: "Full Name", Email: "full@example.com", StationID: "283"}
	require.NoError(t, users.Create(nil, user))
	require.NotZero(t, user.ID)

	byID, err := users.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Full Name", byID.FullName)

	byCSS, err := users.GetByCSSID("CSS_FULL")
	require.NoError(t, err)
	require.NotNil(t, byCSS)
	assert.Equal(t, user.ID, byCSS.ID)

	missing, err := users.GetByCSSID("NOBODY")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
