package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lu-zhengda/inboxsync/internal/classify"
	"github.com/lu-zhengda/inboxsync/internal/config"
	"github.com/lu-zhengda/inboxsync/internal/decode"
	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/provider"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

const (
	stageFetch  = "fetch"
	stageDecode = "decode"
)

// SyncService pulls an account's recent messages from the provider,
// decodes and classifies them, and upserts them into the sink.
type SyncService struct {
	creds   *CredentialManager
	fetcher provider.Fetcher
	sink    store.MessageSink
	cfg     config.SyncConfig
	logger  zerolog.Logger
	now     func() time.Time
	locks   *accountLocks
}

// NewSyncService creates a SyncService. Runs for the same account are
// serialized; runs for different accounts proceed independently.
func NewSyncService(creds *CredentialManager, fetcher provider.Fetcher, sink store.MessageSink, cfg config.SyncConfig, logger zerolog.Logger) *SyncService {
	return &SyncService{
		creds:   creds,
		fetcher: fetcher,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		locks:   newAccountLocks(),
	}
}

// Run performs one sync for accountID. The returned summary is non-nil
// whenever the run got past argument checks, including failed runs; its
// State is StateDone or StateFailed. Per-message fetch and decode failures
// are recorded as skips and never fail the run.
func (s *SyncService) Run(ctx context.Context, accountID string) (*domain.Summary, error) {
	if accountID == "" {
		return nil, newError(KindConfiguration, "sync", errors.New("account id is required"))
	}

	unlock, err := s.locks.acquire(ctx, accountID)
	if err != nil {
		return nil, newError(KindCanceled, "wait for account lock", err)
	}
	defer unlock()

	if s.cfg.Timeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout.Duration)
		defer cancel()
	}

	log := s.logger.With().Str("account_id", accountID).Logger()
	sum := &domain.Summary{AccountID: accountID, State: domain.StateIdle, StartedAt: s.now()}

	fail := func(err error) (*domain.Summary, error) {
		sum.State = domain.StateFailed
		sum.FinishedAt = s.now()
		log.Error().
			Err(err).
			Str("kind", string(KindOf(err))).
			Int("written", sum.Written).
			Int("skipped", sum.Skipped).
			Msg("sync failed")
		return sum, err
	}

	sum.State = domain.StateAuthenticating
	cred, err := s.creds.Load(ctx, accountID)
	if err != nil {
		return fail(err)
	}
	cred, err = s.creds.EnsureValid(ctx, cred)
	if err != nil {
		return fail(err)
	}

	sum.State = domain.StateListing
	ids, err := s.fetcher.ListRecentIDs(ctx, cred.AccessToken, provider.ListOptions{
		Limit: s.cfg.MaxResults,
		Query: s.cfg.Query,
	})
	if err != nil {
		return fail(s.wrap(ctx, KindProvider, "list messages", err))
	}
	sum.Listed = len(ids)
	log.Debug().Int("listed", len(ids)).Msg("listed messages")

	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = len(ids)
	}
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))

		msgs, err := s.processWindow(ctx, log, sum, cred.AccessToken, ids[start:end])
		if err != nil {
			return fail(s.wrap(ctx, KindCanceled, "fetch messages", err))
		}

		sum.State = domain.StateWriting
		n, err := s.sink.UpsertMessages(ctx, accountID, msgs)
		if err != nil {
			return fail(s.wrap(ctx, KindStore, "upsert messages", err))
		}
		sum.Written += n
		if n > 0 {
			if err := s.creds.TouchLastSynced(ctx, accountID); err != nil {
				return fail(err)
			}
		}
	}

	sum.State = domain.StateDone
	sum.FinishedAt = s.now()
	log.Info().
		Int("listed", sum.Listed).
		Int("written", sum.Written).
		Int("skipped", sum.Skipped).
		Dur("duration", sum.Duration()).
		Msg("sync complete")
	return sum, nil
}

// processWindow fetches and decodes ids concurrently, then classifies the
// survivors. It returns an error only when ctx ends.
func (s *SyncService) processWindow(ctx context.Context, log zerolog.Logger, sum *domain.Summary, accessToken string, ids []string) ([]domain.Message, error) {
	sum.State = domain.StateFetchingDecoding

	decoded := make([]*domain.Message, len(ids))
	var mu sync.Mutex

	g := new(errgroup.Group)
	if s.cfg.Concurrency > 0 {
		g.SetLimit(s.cfg.Concurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg, stage, err := s.fetchAndDecode(ctx, accessToken, id)
			if err != nil {
				if isCanceled(ctx, err) {
					return err
				}
				mu.Lock()
				sum.Skip(id, stage, err)
				mu.Unlock()
				log.Warn().Err(err).Str("provider_id", id).Str("stage", stage).Msg("skipping message")
				return nil
			}
			decoded[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum.State = domain.StateClassifying
	msgs := make([]domain.Message, 0, len(decoded))
	for _, m := range decoded {
		if m == nil {
			continue
		}
		m.AccountID = sum.AccountID
		m.Priority, m.Category = classify.Classify(m.Subject, m.FromEmail)
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

func (s *SyncService) fetchAndDecode(ctx context.Context, accessToken, id string) (*domain.Message, string, error) {
	raw, err := s.fetcher.FetchOne(ctx, accessToken, id)
	if err != nil {
		return nil, stageFetch, err
	}
	msg, err := decode.Decode(raw)
	if err != nil {
		return nil, stageDecode, err
	}
	return msg, "", nil
}

// wrap tags err with kind, or KindCanceled when the run's context ended or
// err reports that it would have.
func (s *SyncService) wrap(ctx context.Context, kind Kind, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return newError(KindCanceled, op, fmt.Errorf("%w (%v)", ctxErr, err))
	}
	if isCanceled(ctx, err) {
		return newError(KindCanceled, op, err)
	}
	return newError(kind, op, err)
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
