// Package progress syncs per-component learning progress between the local store and the API.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/netplus/netprep/internal/apiclient"
)

const (
	endpointAll   = "/progress"
	endpointSync  = "/progress/sync"
	endpointReset = "/progress/reset"
)

func componentEndpoint(componentID string) string {
	return "/progress/component/" + url.PathEscape(componentID)
}

// Service talks to the progress API and keeps the local copy and outbox up to date.
type Service struct {
	client *apiclient.Client
	local  *LocalStore
	now    func() time.Time
	logger *slog.Logger
}

func NewService(client *apiclient.Client, local *LocalStore) *Service {
	return &Service{
		client: client,
		local:  local,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Local returns the on-device store.
func (s *Service) Local() *LocalStore {
	return s.local
}

// GetAll fetches all remote progress.
func (s *Service) GetAll(ctx context.Context) (map[string]Record, error) {
	resp, err := s.client.Get(ctx, endpointAll, apiclient.RequestConfig{})
	if err != nil {
		return nil, err
	}

	env, err := apiclient.Decode[allEnvelope](resp)
	if err != nil {
		return nil, fmt.Errorf("progress: decode: %w", err)
	}
	if env.Progress == nil {
		return map[string]Record{}, nil
	}
	return env.Progress, nil
}

// Get fetches one component. It returns nil when the server has no progress for it.
func (s *Service) Get(ctx context.Context, componentID string) (*Record, error) {
	resp, err := s.client.Get(ctx, componentEndpoint(componentID), apiclient.RequestConfig{})
	if err != nil {
		return nil, err
	}

	env, err := apiclient.Decode[recordEnvelope](resp)
	if err != nil {
		return nil, fmt.Errorf("progress: decode %s: %w", componentID, err)
	}
	return env.Progress, nil
}

// Update sends a partial update and stores the server's record locally.
func (s *Service) Update(ctx context.Context, componentID string, u Update) (Record, error) {
	resp, err := s.client.Put(ctx, componentEndpoint(componentID), u, apiclient.RequestConfig{})
	if err != nil {
		return Record{}, err
	}

	env, err := apiclient.Decode[recordEnvelope](resp)
	if err != nil {
		return Record{}, fmt.Errorf("progress: decode %s: %w", componentID, err)
	}
	if env.Progress == nil {
		return Record{}, fmt.Errorf("progress: empty update response for %s", componentID)
	}

	if err := s.local.Put(ctx, *env.Progress); err != nil {
		return Record{}, err
	}
	return *env.Progress, nil
}

// Sync posts the local progress and returns the server's merged state.
func (s *Service) Sync(ctx context.Context, local map[string]Record) (SyncData, error) {
	resp, err := s.client.Post(ctx, endpointSync, syncRequest{Progress: local}, apiclient.RequestConfig{})
	if err != nil {
		return SyncData{}, err
	}

	data, err := apiclient.Decode[SyncData](resp)
	if err != nil {
		return SyncData{}, fmt.Errorf("progress: decode sync: %w", err)
	}
	return data, nil
}

// Reset clears remote and local progress.
func (s *Service) Reset(ctx context.Context) error {
	if _, err := s.client.Post(ctx, endpointReset, nil, apiclient.RequestConfig{}); err != nil {
		return err
	}
	return s.local.Reset(ctx)
}

// QueueUpdate applies u to the local copy and keeps it in the outbox until ProcessQueue sends it.
func (s *Service) QueueUpdate(ctx context.Context, componentID string, u Update) error {
	now := s.now()

	current, err := s.local.Get(ctx, componentID)
	if errors.Is(err, ErrNotFound) {
		current = Record{ComponentID: componentID, LastVisited: now.UTC()}
	} else if err != nil {
		return err
	}

	if err := s.local.Put(ctx, u.Apply(current, now)); err != nil {
		return err
	}
	return s.local.Enqueue(ctx, componentID, u, now)
}

// ProcessQueue sends outbox updates in order. It stops at the first failure and leaves that
// update and the ones after it queued. It returns how many were sent.
func (s *Service) ProcessQueue(ctx context.Context) (int, error) {
	pending, err := s.local.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	s.logger.Info("processing queued progress updates", "count", len(pending))
	for i, q := range pending {
		if _, err := s.Update(ctx, q.ComponentID, q.Update); err != nil {
			s.logger.Warn("queued progress update failed, keeping the rest queued",
				"component", q.ComponentID, "remaining", len(pending)-i, "error", err)
			return i, err
		}
		if err := s.local.Ack(ctx, q.ID); err != nil {
			return i, err
		}
	}

	s.logger.Info("progress queue processed", "count", len(pending))
	return len(pending), nil
}

// Reconcile pulls remote progress, resolves it against the local copy, stores the result and
// then flushes the outbox.
func (s *Service) Reconcile(ctx context.Context) (Result, error) {
	remote, err := s.GetAll(ctx)
	if err != nil {
		return Result{}, err
	}

	local, err := s.local.All(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Resolve(local, remote)
	if err := s.local.PutAll(ctx, res.Resolved); err != nil {
		return res, err
	}
	s.logger.Debug("progress reconciled", "components", len(res.Resolved), "conflicts", len(res.Conflicts))

	if _, err := s.ProcessQueue(ctx); err != nil {
		return res, err
	}
	return res, nil
}
