// Package reminders composes nightly charge messages for every debtor.
// Delivery is out of scope; a composed message is logged and counted.
package reminders

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/quitado/quitado/internal/jobs"
	"github.com/quitado/quitado/internal/ledger"
	"github.com/quitado/quitado/jobs"
)

// LedgerReader is the slice of the ledger service the reminders need.
type LedgerReader interface {
	AllBalances(ctx context.Context) ([]ledger.BalanceWithNames, error)
	ChargeMessage(ctx context.Context, userID int64) (string, error)
}

// Enqueuer submits charge reminder tasks.
type Enqueuer interface {
	EnqueueChargeReminder(ctx context.Context, userID int64) (*asynq.TaskInfo, error)
}

// Service implements the reminder task handlers.
type Service struct {
	ledger      LedgerReader
	enqueuer    Enqueuer
	metrics     *jobmetrics.Metrics
	logger      *slog.Logger
	concurrency int
}

// NewService builds Service instance. metrics may be nil.
func NewService(ledgerReader LedgerReader, enqueuer Enqueuer, metrics *jobmetrics.Metrics, logger *slog.Logger, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		ledger:      ledgerReader,
		enqueuer:    enqueuer,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
	}
}

// HandleFanOut enqueues one charge reminder per distinct debtor.
func (s *Service) HandleFanOut(ctx context.Context, t *asynq.Task) error {
	tracker := s.metrics.Track(jobs.TaskReminderFanOut)
	return tracker.End(s.fanOut(ctx))
}

func (s *Service) fanOut(ctx context.Context) error {
	balances, err := s.ledger.AllBalances(ctx)
	if err != nil {
		return err
	}
	seen := map[int64]struct{}{}
	var debtors []int64
	for _, b := range balances {
		if _, ok := seen[b.DebtorID]; ok {
			continue
		}
		seen[b.DebtorID] = struct{}{}
		debtors = append(debtors, b.DebtorID)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, debtorID := range debtors {
		debtorID := debtorID
		g.Go(func() error {
			if _, err := s.enqueuer.EnqueueChargeReminder(ctx, debtorID); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("charge reminders enqueued", slog.Int("debtors", len(debtors)))
	return nil
}

// HandleCharge composes and logs the charge message for one debtor.
func (s *Service) HandleCharge(ctx context.Context, t *asynq.Task) error {
	tracker := s.metrics.Track(jobs.TaskReminderCharge)

	var payload jobs.ChargeReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}

	msg, err := s.ledger.ChargeMessage(ctx, payload.UserID)
	if err != nil {
		s.metrics.AddReminders("failed", 1)
		return tracker.End(err)
	}
	s.logger.Info("charge reminder composed",
		slog.Int64("user_id", payload.UserID),
		slog.String("message", msg))
	s.metrics.AddReminders("composed", 1)
	return tracker.End(nil)
}
