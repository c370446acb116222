package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"realmsteward.io/steward/internal/metrics"
	"realmsteward.io/steward/internal/notification"
	"realmsteward.io/steward/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

type stubGateway struct {
	err  error
	sent []notification.Email
}

func (g *stubGateway) SendEmail(_ context.Context, e notification.Email) error {
	g.sent = append(g.sent, e)
	return g.err
}

type stubInserter struct {
	args []river.JobArgs
	opts []*river.InsertOpts
	err  error
}

func (s *stubInserter) Insert(_ context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.args = append(s.args, args)
	s.opts = append(s.opts, opts)
	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(s.args))}}, nil
}

func emailJob(kind notification.Kind) *river.Job[EmailArgs] {
	return &river.Job[EmailArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: 1},
		Args: EmailArgs{
			NotificationKind: kind,
			Email:            notification.Email{To: []string{"po@example.com"}, Subject: "Realm r updated"},
		},
	}
}

func TestEmailArgsKind(t *testing.T) {
	t.Parallel()

	if got := (EmailArgs{}).Kind(); got != "realm_email" {
		t.Fatalf("Kind() = %q, want %q", got, "realm_email")
	}
	opts := (EmailArgs{}).InsertOpts()
	if opts.Queue != river.QueueDefault {
		t.Fatalf("Queue = %q, want %q", opts.Queue, river.QueueDefault)
	}
	if opts.MaxAttempts != DefaultEmailMaxAttempts {
		t.Fatalf("MaxAttempts = %d, want %d", opts.MaxAttempts, DefaultEmailMaxAttempts)
	}
}

func TestEmailWorkerWork(t *testing.T) {
	t.Parallel()

	t.Run("delivers and counts success", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		gw := &stubGateway{}
		w := NewEmailWorker(gw, m, 0)

		if err := w.Work(context.Background(), emailJob(notification.KindUpdate)); err != nil {
			t.Fatalf("Work() error = %v", err)
		}
		if len(gw.sent) != 1 || gw.sent[0].Subject != "Realm r updated" {
			t.Fatalf("sent = %+v, want one update email", gw.sent)
		}
		if got := testutil.ToFloat64(m.Notifications.WithLabelValues("update", metrics.OutcomeSuccess)); got != 1 {
			t.Fatalf("success counter = %v, want 1", got)
		}
	})

	t.Run("gateway failure schedules retry", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		w := NewEmailWorker(&stubGateway{err: errors.New("smtp 421")}, m, time.Second)

		err := w.Work(context.Background(), emailJob(notification.KindDelete))
		if err == nil || !strings.Contains(err.Error(), "smtp 421") {
			t.Fatalf("Work() error = %v, want wrapped gateway error", err)
		}
		if got := testutil.ToFloat64(m.Notifications.WithLabelValues("delete", metrics.OutcomeFailure)); got != 1 {
			t.Fatalf("failure counter = %v, want 1", got)
		}
	})

	t.Run("uninitialized", func(t *testing.T) {
		var w *EmailWorker
		err := w.Work(context.Background(), emailJob(notification.KindCreate))
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Fatalf("Work() error = %v, want contains %q", err, "not initialized")
		}
	})
}

func TestEmailWorkerTimeout(t *testing.T) {
	t.Parallel()

	if got := NewEmailWorker(&stubGateway{}, nil, 0).Timeout(nil); got != DefaultEmailTimeout {
		t.Fatalf("Timeout() = %s, want %s", got, DefaultEmailTimeout)
	}
	if got := NewEmailWorker(&stubGateway{}, nil, 5*time.Second).Timeout(nil); got != 5*time.Second {
		t.Fatalf("Timeout() = %s, want 5s", got)
	}
}

func TestEmailDispatcher(t *testing.T) {
	t.Parallel()

	ins := &stubInserter{}
	d := NewEmailDispatcher(ins, 9)
	e := notification.Email{To: []string{"po@example.com"}, Subject: "s"}

	if err := d.Dispatch(context.Background(), notification.KindRestore, e); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(ins.args) != 1 {
		t.Fatalf("inserted %d jobs, want 1", len(ins.args))
	}
	args, ok := ins.args[0].(EmailArgs)
	if !ok || args.NotificationKind != notification.KindRestore {
		t.Fatalf("args = %#v, want restore EmailArgs", ins.args[0])
	}
	if ins.opts[0].MaxAttempts != 9 {
		t.Fatalf("MaxAttempts = %d, want 9", ins.opts[0].MaxAttempts)
	}

	if err := d.Dispatch(context.Background(), notification.KindRestore, notification.Email{Subject: "s"}); err == nil {
		t.Fatal("Dispatch() without recipients succeeded, want error")
	}

	failing := NewEmailDispatcher(&stubInserter{err: errors.New("pool closed")}, 0)
	if err := failing.Dispatch(context.Background(), notification.KindRestore, e); err == nil {
		t.Fatal("Dispatch() error = nil, want insert error")
	}
}
