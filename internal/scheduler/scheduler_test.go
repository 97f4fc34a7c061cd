package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReloader struct{ n int32 }

func (c *countingReloader) Reload(context.Context) error {
	atomic.AddInt32(&c.n, 1)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestAddReloadRejectsBadSchedule(t *testing.T) {
	s := New(quietLogger())
	err := s.AddReload("not a schedule", "gst-credentials", &countingReloader{})
	assert.Error(t, err)
}

func TestAddReloadEmptyScheduleIsDisabled(t *testing.T) {
	s := New(quietLogger())
	require.NoError(t, s.AddReload("", "gst-credentials", &countingReloader{}))
	assert.Empty(t, s.cron.Entries())
}

func TestScheduledReloadRuns(t *testing.T) {
	s := New(quietLogger())
	r := &countingReloader{}
	require.NoError(t, s.AddReload("@every 1s", "gst-credentials", r))

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&r.n) > 0 }, 3*time.Second, 50*time.Millisecond)
}
