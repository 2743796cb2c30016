package intake

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/claims-intake/internal/external"
	"github.com/garyjia/claims-intake/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testTime = time.Date(2015, 1, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type fakeDirectory struct {
	subjects     map[string]*external.Subject
	inaccessible map[string]bool
}

func (d *fakeDirectory) FindSubject(_ context.Context, fileNumber string) (*external.Subject, error) {
	return d.subjects[fileNumber], nil
}

func (d *fakeDirectory) Accessible(_ context.Context, fileNumber string) (bool, error) {
	return !d.inaccessible[fileNumber], nil
}

// fakeStore backs the guard with in-memory intakes and users.
type fakeStore struct {
	inProgress []*models.Intake
	users      map[int64]*models.User
}

func (s *fakeStore) FindInProgressByKey(fileNumber string, formType models.FormType, excludeID int64) (*models.Intake, error) {
	for _, in := range s.inProgress {
		if in.ID == excludeID {
			continue
		}
		if in.VeteranFileNumber == fileNumber && in.Type == formType && in.InProgress() {
			return in, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetUserByID(id int64) (*models.User, error) {
	return s.users[id], nil
}

type lifecycleFixture struct {
	clock     *fixedClock
	directory *fakeDirectory
	store     *fakeStore
}

func newFixture() *lifecycleFixture {
	return &lifecycleFixture{
		clock: &fixedClock{t: testTime},
		directory: &fakeDirectory{
			subjects: map[string]*external.Subject{
				"64205050": {FileNumber: "64205050", FirstName: "Ed", LastName: "Merica"},
			},
			inaccessible: map[string]bool{},
		},
		store: &fakeStore{users: map[int64]*models.User{}},
	}
}

func (f *lifecycleFixture) lifecycle(in *models.Intake) *Lifecycle {
	guard := NewUniquenessGuard(f.store, f.store, zap.NewNop())
	return NewLifecycle(in, f.directory, guard, f.clock, 0, zap.NewNop())
}

func newIntake(fileNumber string) *models.Intake {
	return &models.Intake{
		Type:              models.FormTypeRampElection,
		VeteranFileNumber: fileNumber,
		UserID:            1,
	}
}

func TestValidateStart_FileNumberShape(t *testing.T) {
	tests := []struct {
		name       string
		fileNumber string
	}{
		{name: "empty", fileNumber: ""},
		{name: "fewer than 8 digits", fileNumber: "1234567"},
		{name: "more than 9 digits", fileNumber: "1234567899"},
		{name: "non-digit characters", fileNumber: "HAXHAXHAX"},
		{name: "VACOLS style", fileNumber: "12341234C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := newIntake(tt.fileNumber)

			ok, err := f.lifecycle(in).ValidateStart(context.Background())

			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, models.ErrCodeInvalidFileNumber, in.ErrorCode)
			assert.Nil(t, in.StartedAt)
		})
	}
}

func TestValidateStart_TrimsWhitespace(t *testing.T) {
	f := newFixture()
	in := newIntake("  64205050  ")

	ok, err := f.lifecycle(in).ValidateStart(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "64205050", in.VeteranFileNumber)
}

func TestValidateStart_VeteranNotFound(t *testing.T) {
	f := newFixture()
	in := newIntake("11111111")

	ok, err := f.lifecycle(in).ValidateStart(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.ErrCodeVeteranNotFound, in.ErrorCode)
}

func TestValidateStart_VeteranNotAccessible(t *testing.T) {
	f := newFixture()
	f.directory.inaccessible["64205050"] = true
	in := newIntake("64205050")

	ok, err := f.lifecycle(in).ValidateStart(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.ErrCodeVeteranNotAccessible, in.ErrorCode)
}

func TestValidateStart_DuplicateInProgress(t *testing.T) {
	f := newFixture()
	startedAt := testTime.Add(-15 * time.Minute)
	f.store.users[2] = &models.User{ID: 2, CSSID: "OTHER", FullName: "David Schwimmer"}
	f.store.inProgress = append(f.store.inProgress, &models.Intake{
		ID:                99,
		Type:              models.FormTypeRampElection,
		VeteranFileNumber: "64205050",
		UserID:            2,
		StartedAt:         &startedAt,
	})

	in := newIntake("64205050")
	ok, err := f.lifecycle(in).ValidateStart(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.ErrCodeDuplicateIntakeInProgress, in.ErrorCode)
	assert.Equal(t, map[string]string{"processed_by": "David Schwimmer"}, in.ErrorData)
	assert.Nil(t, in.StartedAt)
}

func TestValidateStart_CompletedDuplicateDoesNotBlock(t *testing.T) {
	f := newFixture()
	startedAt := testTime.Add(-15 * time.Minute)
	completedAt := testTime.Add(-10 * time.Minute)
	f.store.inProgress = append(f.store.inProgress, &models.Intake{
		ID:                99,
		Type:              models.FormTypeRampElection,
		VeteranFileNumber: "64205050",
		UserID:            2,
		StartedAt:         &startedAt,
		CompletedAt:       &completedAt,
		CompletionStatus:  models.CompletionSuccess,
	})

	in := newIntake("64205050")
	ok, err := f.lifecycle(in).ValidateStart(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateStart_OtherFormTypeDoesNotBlock(t *testing.T) {
	f := newFixture()
	startedAt := testTime.Add(-15 * time.Minute)
	f.store.inProgress = append(f.store.inProgress, &models.Intake{
		ID:                99,
		Type:              models.FormTypeAppeal,
		VeteranFileNumber: "64205050",
		UserID:            2,
		StartedAt:         &startedAt,
	})

	in := newIntake("64205050")
	ok, err := f.lifecycle(in).ValidateStart(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateStart_Success(t *testing.T) {
	f := newFixture()
	in := newIntake("64205050")

	ok, err := f.lifecycle(in).ValidateStart(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, in.StartedAt)
	assert.Equal(t, testTime, *in.StartedAt)
	assert.Empty(t, in.ErrorCode)
}

func TestValidateStart_OnlyFromUnstarted(t *testing.T) {
	f := newFixture()

	t.Run("already started", func(t *testing.T) {
		in := startedIntake(f)
		original := *in.StartedAt

		ok, err := f.lifecycle(in).ValidateStart(context.Background())

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, StateStarted, stateErr.State)
		assert.False(t, ok)
		assert.Equal(t, original, *in.StartedAt)
	})

	t.Run("completed", func(t *testing.T) {
		in := startedIntake(f)
		completedAt := f.clock.t
		in.CompletedAt = &completedAt
		in.CompletionStatus = models.CompletionSuccess

		ok, err := f.lifecycle(in).ValidateStart(context.Background())

		var stateErr *StateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, StateCompleted, stateErr.State)
		assert.False(t, ok)
	})
}

func startedIntake(f *lifecycleFixture) *models.Intake {
	startedAt := f.clock.t.Add(-15 * time.Minute)
	return &models.Intake{
		ID:                1,
		Type:              models.FormTypeRampElection,
		VeteranFileNumber: "64205050",
		UserID:            1,
		StartedAt:         &startedAt,
	}
}

func TestStartCompletion_SetsTimestamp(t *testing.T) {
	f := newFixture()
	in := startedIntake(f)
	lc := f.lifecycle(in)

	require.NoError(t, lc.StartCompletion())

	require.NotNil(t, in.CompletionStartedAt)
	assert.Equal(t, testTime, *in.CompletionStartedAt)
}

func TestStartCompletion_IdempotentWhileCompleting(t *testing.T) {
	f := newFixture()
	in := startedIntake(f)
	lc := f.lifecycle(in)

	require.NoError(t, lc.StartCompletion())
	first := *in.CompletionStartedAt

	// A retry after a crash must not move the timestamp.
	f.clock.t = f.clock.t.Add(2 * time.Minute)
	require.NoError(t, lc.StartCompletion())

	assert.Equal(t, first, *in.CompletionStartedAt)
}

func TestStartCompletion_FromUnstarted(t *testing.T) {
	f := newFixture()
	in := newIntake("64205050")

	err := f.lifecycle(in).StartCompletion()

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateUnstarted, stateErr.State)
}

func TestAbortCompletion_RoundTrip(t *testing.T) {
	f := newFixture()
	in := startedIntake(f)
	lc := f.lifecycle(in)

	before := *in

	require.NoError(t, lc.StartCompletion())
	assert.NotEqual(t, before, *in)

	require.NoError(t, lc.AbortCompletion())
	assert.Equal(t, before, *in)
}

func TestAbortCompletion_FromStarted(t *testing.T) {
	f := newFixture()
	in := startedIntake(f)

	err := f.lifecycle(in).AbortCompletion()

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateStarted, stateErr.State)
}

func TestCompleteWithStatus_Canceled(t *testing.T) {
	f := newFixture()
	in := startedIntake(f)
	lc := f.lifecycle(in)

	err := lc.CompleteWithStatus(models.CompletionCanceled, CompletionExtra{
		CancelReason: models.CancelReasonDuplicateEP,
	})

	require.NoError(t, err)
	require.NotNil(t, in.CompletedAt)
	assert.Equal(t, testTime, *in.CompletedAt)
	assert.Equal(t, models.CompletionCanceled, in.CompletionStatus)
	assert.Equal(t, models.CancelReasonDuplicateEP, in.CancelReason)
	assert.Nil(t, in.CompletionStartedAt)
}

func TestCompleteWithStatus_ErrorRecordsCodeAndData(t *testing.T) {
	f := newFixture()
	in := startedIntake(f)
	lc := f.lifecycle(in)

	require.NoError(t, lc.StartCompletion())
	err := lc.CompleteWithStatus(models.CompletionError, CompletionExtra{
		ErrorCode: models.ErrCodeVeteranNotValid,
		ErrorData: map[string]string{"detail": "missing address"},
	})

	require.NoError(t, err)
	assert.Equal(t, models.CompletionError, in.CompletionStatus)
	assert.Equal(t, models.ErrCodeVeteranNotValid, in.ErrorCode)
	assert.Equal(t, map[string]string{"detail": "missing address"}, in.ErrorData)
	assert.Nil(t, in.CompletionStartedAt)
}

func TestCompleteWithStatus_FromTerminal(t *testing.T) {
	f := newFixture()
	in := startedIntake(f)
	lc := f.lifecycle(in)

	require.NoError(t, lc.CompleteWithStatus(models.CompletionSuccess, CompletionExtra{}))

	err := lc.CompleteWithStatus(models.CompletionCanceled, CompletionExtra{})

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateCompleted, stateErr.State)
}

func TestPending(t *testing.T) {
	tests := []struct {
		name              string
		status            models.CompletionStatus
		startedMinutesAgo int // -1 means no completion in flight
		expected          bool
	}{
		{
			name:              "no completion in flight",
			status:            models.CompletionPending,
			startedMinutesAgo: -1,
			expected:          false,
		},
		{
			name:              "within timeout",
			status:            models.CompletionPending,
			startedMinutesAgo: 4,
			expected:          true,
		},
		{
			name:              "exceeded timeout",
			status:            models.CompletionPending,
			startedMinutesAgo: 6,
			expected:          false,
		},
		{
			name:              "at exactly the timeout",
			status:            models.CompletionPending,
			startedMinutesAgo: 5,
			expected:          false,
		},
		{
			name:              "not a pending status",
			status:            models.CompletionSuccess,
			startedMinutesAgo: 4,
			expected:          false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := startedIntake(f)
			in.CompletionStatus = tt.status
			if tt.startedMinutesAgo >= 0 {
				startedAt := testTime.Add(-time.Duration(tt.startedMinutesAgo) * time.Minute)
				in.CompletionStartedAt = &startedAt
			}

			assert.Equal(t, tt.expected, f.lifecycle(in).Pending())
		})
	}
}
