package allocators

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/allocator"
	"github.com/aristath/allocator/internal/bridge"
	"github.com/aristath/allocator/internal/strategy"
)

// live is a running allocator. Its mutex admits one caller at a time.
type live struct {
	mu     sync.Mutex
	record Record
	alloc  *allocator.Allocator
}

func (l *live) info() Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Info{
		Record:          l.record,
		Kind:            l.alloc.Kind(),
		MinObservations: l.alloc.MinObservations(),
	}
}

// Service creates, persists and runs allocators.
type Service struct {
	catalog *Catalog
	repo    *Repository
	opts    []allocator.Option
	mu      sync.RWMutex
	live    map[string]*live
	log     zerolog.Logger
}

// NewService creates a service. opts are applied to every allocator it builds.
func NewService(catalog *Catalog, repo *Repository, log zerolog.Logger, opts ...allocator.Option) *Service {
	logger := log.With().Str("service", "allocators").Logger()
	return &Service{
		catalog: catalog,
		repo:    repo,
		opts:    append([]allocator.Option{allocator.WithLogger(logger)}, opts...),
		live:    make(map[string]*live),
		log:     logger,
	}
}

// Strategies lists the references Create accepts.
func (s *Service) Strategies() []StrategyEntry {
	return s.catalog.Entries()
}

func (s *Service) build(ref string, cfg strategy.Config) (*allocator.Allocator, error) {
	target, err := s.catalog.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return allocator.New(target, cfg, s.opts...)
}

// Create builds an allocator and persists it once construction has succeeded.
func (s *Service) Create(name, ref string, cfg strategy.Config) (*Info, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: strategy is required", ErrInvalidRequest)
	}

	alloc, err := s.build(ref, cfg)
	if err != nil {
		return nil, err
	}

	rec := Record{
		ID:        uuid.New().String(),
		Name:      name,
		Strategy:  ref,
		Config:    cfg,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.repo.Create(rec); err != nil {
		_ = alloc.Close()
		return nil, err
	}

	l := &live{record: rec, alloc: alloc}
	s.mu.Lock()
	s.live[rec.ID] = l
	s.mu.Unlock()

	s.log.Info().
		Str("id", rec.ID).
		Str("name", rec.Name).
		Str("strategy", ref).
		Msg("Allocator created")

	info := l.info()
	return &info, nil
}

func (s *Service) get(id string) (*live, error) {
	s.mu.RLock()
	l, ok := s.live[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l, nil
}

// Get returns one allocator.
func (s *Service) Get(id string) (*Info, error) {
	l, err := s.get(id)
	if err != nil {
		return nil, err
	}
	info := l.info()
	return &info, nil
}

// List returns all live allocators, oldest first.
func (s *Service) List() []Info {
	s.mu.RLock()
	all := make([]*live, 0, len(s.live))
	for _, l := range s.live {
		all = append(all, l)
	}
	s.mu.RUnlock()

	infos := make([]Info, 0, len(all))
	for _, l := range all {
		infos = append(infos, l.info())
	}
	sortInfos(infos)
	return infos
}

// Delete removes an allocator from storage and releases it.
func (s *Service) Delete(id string) error {
	l, err := s.get(id)
	if err != nil {
		return err
	}
	if _, err := s.repo.Delete(id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.alloc.Close(); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("Failed to release allocator strategy")
	}

	s.log.Info().Str("id", id).Msg("Allocator deleted")
	return nil
}

// Predict runs one prediction and reports the weights' shape.
func (s *Service) Predict(id string, input any) (*PredictResponse, error) {
	l, err := s.get(id)
	if err != nil {
		return nil, err
	}

	weights, err := l.predict(input)
	if err != nil {
		return nil, err
	}

	shape, err := bridge.Shape(weights)
	if err != nil {
		return nil, err
	}
	return &PredictResponse{Weights: weights, Shape: shape}, nil
}

func (l *live) predict(input any) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alloc.Predict(input)
}

// MinObservations returns the advisory minimum batch length of one allocator.
func (s *Service) MinObservations(id string) (int, error) {
	l, err := s.get(id)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alloc.MinObservations(), nil
}

// Load rebuilds every persisted allocator. Records that no longer build are logged and
// skipped, not deleted. It returns how many were loaded.
func (s *Service) Load() (int, error) {
	records, err := s.repo.List()
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, rec := range records {
		alloc, err := s.build(rec.Strategy, rec.Config)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("id", rec.ID).
				Str("strategy", rec.Strategy).
				Msg("Skipping allocator that failed to build")
			continue
		}
		s.mu.Lock()
		s.live[rec.ID] = &live{record: rec, alloc: alloc}
		s.mu.Unlock()
		loaded++
	}

	s.log.Info().
		Int("loaded", loaded).
		Int("persisted", len(records)).
		Msg("Allocators loaded")
	return loaded, nil
}

func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
}
