package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/larderhq/larder/internal/risk"
	"github.com/larderhq/larder/internal/store"
)

// Scheduler sends the daily expiry digest. It ticks every minute and,
// once the configured UTC hour arrives, pushes one digest per user who
// has subscriptions and urgent items. The sent_digests table keeps a
// digest from repeating within a day.
type Scheduler struct {
	// OnDigest, if set, is called once per user digest sent. Set before Start.
	OnDigest func()

	mu         sync.RWMutex
	service    *Service
	push       *store.PushStore
	items      *store.ItemStore
	logger     *slog.Logger
	digestHour int
	interval   time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewScheduler creates a digest scheduler firing at digestHour UTC.
func NewScheduler(svc *Service, pushStore *store.PushStore, itemStore *store.ItemStore, digestHour int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:    svc,
		push:       pushStore,
		items:      itemStore,
		logger:     logger,
		digestHour: digestHour,
		interval:   60 * time.Second,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	if !s.service.Configured() {
		return
	}
	if now.Hour() != s.digestHour {
		return
	}
	s.sendDigests(now)
}

func (s *Scheduler) sendDigests(now time.Time) {
	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("digest scheduler: list users", "error", err)
		return
	}

	digestDate := now.Format("2006-01-02")

	for _, userID := range userIDs {
		sent, err := s.push.WasDigestSent(userID, digestDate)
		if err != nil {
			s.logger.Error("digest scheduler: check sent", "user_id", userID, "error", err)
			continue
		}
		if sent {
			continue
		}

		items, err := s.items.ListByUser(userID)
		if err != nil {
			s.logger.Error("digest scheduler: list items", "user_id", userID, "error", err)
			continue
		}

		var critical, high int
		for _, scored := range risk.ScoreItems(items, now) {
			switch scored.Tier {
			case risk.TierCritical:
				critical++
			case risk.TierHigh:
				high++
			}
		}

		if critical == 0 && high == 0 {
			// Nothing urgent today. Record the date anyway so the
			// remaining ticks this hour skip the rescan.
			if err := s.push.RecordDigest(userID, digestDate); err != nil {
				s.logger.Error("digest scheduler: record digest", "user_id", userID, "error", err)
			}
			continue
		}

		payload := Payload{
			Title: "Larder expiry digest",
			Body:  digestBody(critical, high),
			URL:   "/",
			Tag:   "expiry-digest",
		}

		subs, err := s.push.ListByUser(userID)
		if err != nil {
			s.logger.Error("digest scheduler: list subscriptions", "user_id", userID, "error", err)
			continue
		}

		for _, sub := range subs {
			if err := s.service.Send(&sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
						s.logger.Error("digest scheduler: prune subscription", "error", err)
					}
				} else {
					s.logger.Error("digest scheduler: send digest", "user_id", userID, "error", err)
				}
			}
		}

		if err := s.push.RecordDigest(userID, digestDate); err != nil {
			s.logger.Error("digest scheduler: record digest", "user_id", userID, "error", err)
		}

		if s.OnDigest != nil {
			s.OnDigest()
		}

		s.logger.Info("expiry digest sent", "user_id", userID, "critical", critical, "high", high, "devices", len(subs))
	}
}

func digestBody(critical, high int) string {
	switch {
	case critical > 0 && high > 0:
		return fmt.Sprintf("%d items expire today/tomorrow and %d more within 3 days.", critical, high)
	case critical > 0:
		return fmt.Sprintf("%d items expire today/tomorrow.", critical)
	default:
		return fmt.Sprintf("%d items expire within 3 days.", high)
	}
}
