package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/directory"
	"github.com/sandwichproject/coordinator/internal/projects"
)

var errPrimaryDown = errors.New("primary connection refused")

// scriptedStore wraps a MemoryStore and lets tests inject failures and stale reads.
type scriptedStore struct {
	*MemoryStore

	mu               sync.Mutex
	err              error
	staleCollections []collections.Collection
	deleteResult     *bool
	deleteCalls      int
	renameCalls      int
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{MemoryStore: NewMemoryStore()}
}

func (s *scriptedStore) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *scriptedStore) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *scriptedStore) GetAllSandwichCollections(ctx context.Context) ([]collections.Collection, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	stale := s.staleCollections
	s.mu.Unlock()
	if stale != nil {
		return append([]collections.Collection(nil), stale...), nil
	}
	return s.MemoryStore.GetAllSandwichCollections(ctx)
}

func (s *scriptedStore) CreateSandwichCollection(ctx context.Context, record collections.Collection) (collections.Collection, error) {
	if err := s.failure(); err != nil {
		return collections.Collection{}, err
	}
	return s.MemoryStore.CreateSandwichCollection(ctx, record)
}

func (s *scriptedStore) UpdateSandwichCollection(ctx context.Context, id int64, update collections.CollectionUpdate) (*collections.Collection, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	return s.MemoryStore.UpdateSandwichCollection(ctx, id, update)
}

func (s *scriptedStore) DeleteSandwichCollection(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	s.deleteCalls++
	forced := s.deleteResult
	s.mu.Unlock()
	if err := s.failure(); err != nil {
		return false, err
	}
	if forced != nil {
		return *forced, nil
	}
	return s.MemoryStore.DeleteSandwichCollection(ctx, id)
}

func (s *scriptedStore) UpdateCollectionHostNames(ctx context.Context, oldName, newName string) (int64, error) {
	s.mu.Lock()
	s.renameCalls++
	s.mu.Unlock()
	if err := s.failure(); err != nil {
		return 0, err
	}
	return s.MemoryStore.UpdateCollectionHostNames(ctx, oldName, newName)
}

func (s *scriptedStore) GetAllHosts(ctx context.Context) ([]directory.Host, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	return s.MemoryStore.GetAllHosts(ctx)
}

func (s *scriptedStore) UpdateHost(ctx context.Context, id int64, update directory.HostUpdate) (*directory.Host, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	return s.MemoryStore.UpdateHost(ctx, id, update)
}

func (s *scriptedStore) DeleteHost(ctx context.Context, id int64) (bool, error) {
	if err := s.failure(); err != nil {
		return false, err
	}
	return s.MemoryStore.DeleteHost(ctx, id)
}

func collectionRecord(id int64, date, host string, individual int) collections.Collection {
	return collections.Collection{
		ID:                   id,
		CollectionDate:       date,
		HostName:             host,
		IndividualSandwiches: individual,
	}
}

func boolPointer(value bool) *bool {
	return &value
}

func stringPointer(value string) *string {
	return &value
}

func (s *scriptedStore) GetAllProjects(ctx context.Context) ([]projects.Project, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	return s.MemoryStore.GetAllProjects(ctx)
}

func (s *scriptedStore) CreateProject(ctx context.Context, project projects.Project) (projects.Project, error) {
	if err := s.failure(); err != nil {
		return projects.Project{}, err
	}
	return s.MemoryStore.CreateProject(ctx, project)
}

func (s *scriptedStore) UpdateProject(ctx context.Context, id int64, update projects.ProjectUpdate) (*projects.Project, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	return s.MemoryStore.UpdateProject(ctx, id, update)
}
