package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/repository/postgres"
)

func intervalRows(unit string, value int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"interval_unit", "interval_value"}).AddRow(unit, value)
}

func TestStartRunsImmediateJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT interval_unit, interval_value FROM config").
		WillReturnRows(intervalRows("minutes", 10))

	var runs int32
	s := &Scheduler{
		Config:  postgres.NewConfigRepo(db),
		JobName: "email_ingest",
		Ingest: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	}

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.True(t, s.Running())
	assert.False(t, s.NextRun().IsZero())

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, time.Second, 10*time.Millisecond, "startup fires one immediate run")
}

func TestStartTwiceFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT interval_unit, interval_value FROM config").
		WillReturnRows(intervalRows("minutes", 10))

	s := &Scheduler{
		Config:  postgres.NewConfigRepo(db),
		JobName: "email_ingest",
		Ingest:  func(ctx context.Context) error { return nil },
	}
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
}

func TestStopThenTriggerIsInert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT interval_unit, interval_value FROM config").
		WillReturnRows(intervalRows("seconds", 30))

	var runs int32
	s := &Scheduler{
		Config:  postgres.NewConfigRepo(db),
		JobName: "email_ingest",
		Ingest: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	}
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	assert.True(t, s.NextRun().IsZero())

	// A manual trigger after Stop finds a cancelled context and does
	// not run the job.
	before := atomic.LoadInt32(&runs)
	s.TriggerNow()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt32(&runs))
}

func TestAddPeriodicJobIsScheduled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT interval_unit, interval_value FROM config").
		WillReturnRows(intervalRows("minutes", 10))

	var aux int32
	s := &Scheduler{
		Config:  postgres.NewConfigRepo(db),
		JobName: "email_ingest",
		Ingest:  func(ctx context.Context) error { return nil },
	}
	s.AddPeriodic("certwatch", 20*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&aux, 1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&aux) >= 1
	}, 2*time.Second, 10*time.Millisecond, "auxiliary jobs fire on their own interval")
}

func TestSetIntervalValidates(t *testing.T) {
	s := &Scheduler{}
	assert.Error(t, s.SetInterval(context.Background(), "hours", 1))
	assert.Error(t, s.SetInterval(context.Background(), "minutes", 0))
}
