package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/directory"
	"github.com/sandwichproject/coordinator/internal/messaging"
	"github.com/sandwichproject/coordinator/internal/metrics"
	"github.com/sandwichproject/coordinator/internal/projects"
	"github.com/sandwichproject/coordinator/internal/users"
	"go.uber.org/zap"
)

// FacadeConfig describes the stores and observability hooks of a Facade.
type FacadeConfig struct {
	// Primary constructs the durable store. A nil func or an error selects the fallback.
	Primary  func() (Store, error)
	Fallback Store
	Logger   *zap.Logger
	Metrics  *metrics.StorageMetrics
}

// Facade routes every call to the primary store first and to the fallback
// store when the primary errors or reports a missing record.
type Facade struct {
	primary    Store
	fallback   Store
	logger     *zap.Logger
	metrics    *metrics.StorageMetrics
	tombstones *tombstoneSet
	degraded   bool
}

// NewFacade constructs the façade. It never fails: when the primary cannot be
// constructed the fallback serves as primary.
func NewFacade(cfg FacadeConfig) *Facade {
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = NewMemoryStore()
	}

	facade := &Facade{
		primary:    fallback,
		fallback:   fallback,
		logger:     logger,
		metrics:    cfg.Metrics,
		tombstones: newTombstoneSet(),
		degraded:   true,
	}
	if cfg.Primary == nil {
		logger.Warn("no primary store configured, serving from fallback store")
		return facade
	}
	primary, err := cfg.Primary()
	if err != nil || primary == nil {
		logger.Error("primary store construction failed, serving from fallback store", zap.Error(err))
		return facade
	}
	facade.primary = primary
	facade.degraded = false
	return facade
}

// Degraded reports whether the fallback store is acting as primary.
func (f *Facade) Degraded() bool {
	return f.degraded
}

type servedBy int

const (
	servedByPrimary servedBy = iota
	servedByFallback
)

// run executes call against the primary and then, on error or when
// softFailure reports a missing result, against the fallback.
func run[T any](f *Facade, operation string, call func(Store) (T, error), softFailure func(T) bool) (T, servedBy, error) {
	var zero T
	result, err := call(f.primary)
	if err == nil {
		if softFailure == nil || !softFailure(result) || f.primary == f.fallback {
			return result, servedByPrimary, nil
		}
		fallbackResult, fallbackErr := call(f.fallback)
		if fallbackErr != nil {
			f.logger.Warn("fallback store failed after primary soft failure",
				zap.String("operation", operation), zap.Error(fallbackErr))
			return zero, servedByFallback, fallbackErr
		}
		f.metrics.RecordFallbackServed(operation, metrics.ReasonSoftFailure)
		f.logger.Info("fallback store consulted after primary soft failure", zap.String("operation", operation))
		return fallbackResult, servedByFallback, nil
	}

	f.logger.Warn("primary store operation failed", zap.String("operation", operation), zap.Error(err))
	f.metrics.RecordPrimaryFailure(operation)
	if f.primary == f.fallback {
		return zero, servedByPrimary, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	fallbackResult, fallbackErr := call(f.fallback)
	if fallbackErr != nil {
		f.logger.Error("fallback store operation failed",
			zap.String("operation", operation), zap.NamedError("primary_error", err), zap.Error(fallbackErr))
		return zero, servedByFallback, fmt.Errorf("%w: %w", ErrStoreUnavailable, fallbackErr)
	}
	f.metrics.RecordFallbackServed(operation, metrics.ReasonError)
	f.logger.Info("fallback store served operation", zap.String("operation", operation))
	return fallbackResult, servedByFallback, nil
}

func execute[T any](f *Facade, operation string, call func(Store) (T, error), softFailure func(T) bool) (T, error) {
	result, _, err := run(f, operation, call, softFailure)
	return result, err
}

func missing[T any](value *T) bool {
	return value == nil
}

func notDeleted(deleted bool) bool {
	return !deleted
}

// GetAllSandwichCollections returns every collection that has not been deleted through this façade.
func (f *Facade) GetAllSandwichCollections(ctx context.Context) ([]collections.Collection, error) {
	records, err := execute(f, "collections.list", func(s Store) ([]collections.Collection, error) {
		return s.GetAllSandwichCollections(ctx)
	}, nil)
	if err != nil {
		return nil, err
	}
	return f.tombstones.filter(records), nil
}

func (f *Facade) GetSandwichCollection(ctx context.Context, id int64) (*collections.Collection, error) {
	if f.tombstones.contains(id) {
		return nil, nil
	}
	return execute(f, "collections.get", func(s Store) (*collections.Collection, error) {
		return s.GetSandwichCollection(ctx, id)
	}, missing)
}

// Pagination describes one page of the collection log.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// CollectionPage is a slice of the collection log plus its pagination.
type CollectionPage struct {
	Collections []collections.Collection `json:"collections"`
	Pagination  Pagination               `json:"pagination"`
}

// ListSandwichCollections pages the tombstone-filtered collection log. A
// non-positive limit returns everything on one page.
func (f *Facade) ListSandwichCollections(ctx context.Context, page, limit int) (CollectionPage, error) {
	records, err := f.GetAllSandwichCollections(ctx)
	if err != nil {
		return CollectionPage{}, err
	}
	if page < 1 {
		page = 1
	}
	total := len(records)
	if limit <= 0 {
		limit = total
		page = 1
	}
	totalPages := 0
	if limit > 0 {
		totalPages = total / limit
		if total%limit != 0 {
			totalPages++
		}
	}
	// Pages past the end are empty; bounding page first keeps the offset from overflowing.
	start := total
	if page <= totalPages {
		start = (page - 1) * limit
	}
	end := total
	if limit < total-start {
		end = start + limit
	}
	return CollectionPage{
		Collections: records[start:end],
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages,
			TotalItems:   total,
			ItemsPerPage: limit,
		},
	}, nil
}

// GetCollectionStats summarizes the visible collection log.
func (f *Facade) GetCollectionStats(ctx context.Context) (collections.Stats, error) {
	records, err := f.GetAllSandwichCollections(ctx)
	if err != nil {
		return collections.Stats{}, err
	}
	return collections.Summarize(records), nil
}

// CreateSandwichCollection stores the record and, when the primary accepted
// it, mirrors it into the fallback under the primary-assigned id.
func (f *Facade) CreateSandwichCollection(ctx context.Context, record collections.Collection) (collections.Collection, error) {
	created, served, err := run(f, "collections.create", func(s Store) (collections.Collection, error) {
		return s.CreateSandwichCollection(ctx, record)
	}, nil)
	if err != nil {
		return collections.Collection{}, err
	}
	f.tombstones.remove(created.ID)
	if served == servedByPrimary && f.primary != f.fallback {
		if _, mirrorErr := f.fallback.CreateSandwichCollection(ctx, created); mirrorErr != nil {
			f.metrics.RecordMirrorFailure()
			f.logger.Warn("failed to mirror collection into fallback store",
				zap.Int64("id", created.ID), zap.Error(mirrorErr))
		}
	}
	return created, nil
}

func (f *Facade) UpdateSandwichCollection(ctx context.Context, id int64, update collections.CollectionUpdate) (*collections.Collection, error) {
	return execute(f, "collections.update", func(s Store) (*collections.Collection, error) {
		return s.UpdateSandwichCollection(ctx, id, update)
	}, missing)
}

// DeleteSandwichCollection marks id deleted before asking the primary, and
// only consults the fallback when the primary errors.
func (f *Facade) DeleteSandwichCollection(ctx context.Context, id int64) (bool, error) {
	const operation = "collections.delete"
	f.tombstones.add(id)
	deleted, err := f.primary.DeleteSandwichCollection(ctx, id)
	if err == nil {
		if !deleted {
			f.tombstones.remove(id)
		}
		return deleted, nil
	}

	f.logger.Warn("primary store operation failed", zap.String("operation", operation),
		zap.Int64("id", id), zap.Error(err))
	f.metrics.RecordPrimaryFailure(operation)
	f.tombstones.remove(id)
	if f.primary == f.fallback {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	deleted, err = f.fallback.DeleteSandwichCollection(ctx, id)
	if err != nil {
		f.logger.Error("fallback store operation failed", zap.String("operation", operation),
			zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	f.metrics.RecordFallbackServed(operation, metrics.ReasonError)
	f.logger.Info("fallback store served operation", zap.String("operation", operation), zap.Int64("id", id))
	return deleted, nil
}

// UpdateCollectionHostNames rewrites hostName oldName to newName in one bulk
// operation and returns the number of records changed.
func (f *Facade) UpdateCollectionHostNames(ctx context.Context, oldName, newName string) (int64, error) {
	return execute(f, "collections.rename_host", func(s Store) (int64, error) {
		return s.UpdateCollectionHostNames(ctx, oldName, newName)
	}, nil)
}

func (f *Facade) GetAllHosts(ctx context.Context) ([]directory.Host, error) {
	return execute(f, "hosts.list", func(s Store) ([]directory.Host, error) {
		return s.GetAllHosts(ctx)
	}, nil)
}

func (f *Facade) GetHost(ctx context.Context, id int64) (*directory.Host, error) {
	return execute(f, "hosts.get", func(s Store) (*directory.Host, error) {
		return s.GetHost(ctx, id)
	}, missing)
}

func (f *Facade) CreateHost(ctx context.Context, host directory.Host) (directory.Host, error) {
	return execute(f, "hosts.create", func(s Store) (directory.Host, error) {
		return s.CreateHost(ctx, host)
	}, nil)
}

func (f *Facade) UpdateHost(ctx context.Context, id int64, update directory.HostUpdate) (*directory.Host, error) {
	return execute(f, "hosts.update", func(s Store) (*directory.Host, error) {
		return s.UpdateHost(ctx, id, update)
	}, missing)
}

func (f *Facade) DeleteHost(ctx context.Context, id int64) (bool, error) {
	return execute(f, "hosts.delete", func(s Store) (bool, error) {
		return s.DeleteHost(ctx, id)
	}, notDeleted)
}

func (f *Facade) GetAllRecipients(ctx context.Context) ([]directory.Recipient, error) {
	return execute(f, "recipients.list", func(s Store) ([]directory.Recipient, error) {
		return s.GetAllRecipients(ctx)
	}, nil)
}

func (f *Facade) GetRecipient(ctx context.Context, id int64) (*directory.Recipient, error) {
	return execute(f, "recipients.get", func(s Store) (*directory.Recipient, error) {
		return s.GetRecipient(ctx, id)
	}, missing)
}

func (f *Facade) CreateRecipient(ctx context.Context, recipient directory.Recipient) (directory.Recipient, error) {
	return execute(f, "recipients.create", func(s Store) (directory.Recipient, error) {
		return s.CreateRecipient(ctx, recipient)
	}, nil)
}

func (f *Facade) UpdateRecipient(ctx context.Context, id int64, update directory.RecipientUpdate) (*directory.Recipient, error) {
	return execute(f, "recipients.update", func(s Store) (*directory.Recipient, error) {
		return s.UpdateRecipient(ctx, id, update)
	}, missing)
}

func (f *Facade) DeleteRecipient(ctx context.Context, id int64) (bool, error) {
	return execute(f, "recipients.delete", func(s Store) (bool, error) {
		return s.DeleteRecipient(ctx, id)
	}, notDeleted)
}

func (f *Facade) GetAllDrivers(ctx context.Context) ([]directory.Driver, error) {
	return execute(f, "drivers.list", func(s Store) ([]directory.Driver, error) {
		return s.GetAllDrivers(ctx)
	}, nil)
}

func (f *Facade) GetDriver(ctx context.Context, id int64) (*directory.Driver, error) {
	return execute(f, "drivers.get", func(s Store) (*directory.Driver, error) {
		return s.GetDriver(ctx, id)
	}, missing)
}

func (f *Facade) CreateDriver(ctx context.Context, driver directory.Driver) (directory.Driver, error) {
	return execute(f, "drivers.create", func(s Store) (directory.Driver, error) {
		return s.CreateDriver(ctx, driver)
	}, nil)
}

func (f *Facade) UpdateDriver(ctx context.Context, id int64, update directory.DriverUpdate) (*directory.Driver, error) {
	return execute(f, "drivers.update", func(s Store) (*directory.Driver, error) {
		return s.UpdateDriver(ctx, id, update)
	}, missing)
}

func (f *Facade) DeleteDriver(ctx context.Context, id int64) (bool, error) {
	return execute(f, "drivers.delete", func(s Store) (bool, error) {
		return s.DeleteDriver(ctx, id)
	}, notDeleted)
}

func (f *Facade) GetAllMessages(ctx context.Context) ([]messaging.Message, error) {
	return execute(f, "messages.list", func(s Store) ([]messaging.Message, error) {
		return s.GetAllMessages(ctx)
	}, nil)
}

func (f *Facade) GetRecentMessages(ctx context.Context, limit int) ([]messaging.Message, error) {
	return execute(f, "messages.recent", func(s Store) ([]messaging.Message, error) {
		return s.GetRecentMessages(ctx, limit)
	}, nil)
}

func (f *Facade) GetMessage(ctx context.Context, id int64) (*messaging.Message, error) {
	return execute(f, "messages.get", func(s Store) (*messaging.Message, error) {
		return s.GetMessage(ctx, id)
	}, missing)
}

func (f *Facade) CreateMessage(ctx context.Context, message messaging.Message) (messaging.Message, error) {
	return execute(f, "messages.create", func(s Store) (messaging.Message, error) {
		return s.CreateMessage(ctx, message)
	}, nil)
}

func (f *Facade) CreateReply(ctx context.Context, reply messaging.Message, parentID int64) (*messaging.Message, error) {
	return execute(f, "messages.reply", func(s Store) (*messaging.Message, error) {
		return s.CreateReply(ctx, reply, parentID)
	}, missing)
}

func (f *Facade) GetThreadMessages(ctx context.Context, threadID int64) ([]messaging.Message, error) {
	return execute(f, "messages.thread", func(s Store) ([]messaging.Message, error) {
		return s.GetThreadMessages(ctx, threadID)
	}, nil)
}

func (f *Facade) DeleteMessage(ctx context.Context, id int64) (bool, error) {
	return execute(f, "messages.delete", func(s Store) (bool, error) {
		return s.DeleteMessage(ctx, id)
	}, notDeleted)
}

func (f *Facade) GetAllProjects(ctx context.Context) ([]projects.Project, error) {
	return execute(f, "projects.list", func(s Store) ([]projects.Project, error) {
		return s.GetAllProjects(ctx)
	}, nil)
}

func (f *Facade) GetProject(ctx context.Context, id int64) (*projects.Project, error) {
	return execute(f, "projects.get", func(s Store) (*projects.Project, error) {
		return s.GetProject(ctx, id)
	}, missing)
}

func (f *Facade) CreateProject(ctx context.Context, project projects.Project) (projects.Project, error) {
	return execute(f, "projects.create", func(s Store) (projects.Project, error) {
		return s.CreateProject(ctx, project)
	}, nil)
}

func (f *Facade) UpdateProject(ctx context.Context, id int64, update projects.ProjectUpdate) (*projects.Project, error) {
	return execute(f, "projects.update", func(s Store) (*projects.Project, error) {
		return s.UpdateProject(ctx, id, update)
	}, missing)
}

func (f *Facade) DeleteProject(ctx context.Context, id int64) (bool, error) {
	return execute(f, "projects.delete", func(s Store) (bool, error) {
		return s.DeleteProject(ctx, id)
	}, notDeleted)
}

func (f *Facade) GetUser(ctx context.Context, id string) (*users.User, error) {
	return execute(f, "users.get", func(s Store) (*users.User, error) {
		return s.GetUser(ctx, id)
	}, missing)
}

func (f *Facade) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	return execute(f, "users.get_by_email", func(s Store) (*users.User, error) {
		return s.GetUserByEmail(ctx, email)
	}, missing)
}

func (f *Facade) GetAllUsers(ctx context.Context) ([]users.User, error) {
	return execute(f, "users.list", func(s Store) ([]users.User, error) {
		return s.GetAllUsers(ctx)
	}, nil)
}

func (f *Facade) CreateUser(ctx context.Context, user users.User) (users.User, error) {
	return execute(f, "users.create", func(s Store) (users.User, error) {
		return s.CreateUser(ctx, user)
	}, nil)
}

func (f *Facade) UpdateUser(ctx context.Context, id string, update users.UserUpdate) (*users.User, error) {
	return execute(f, "users.update", func(s Store) (*users.User, error) {
		return s.UpdateUser(ctx, id, update)
	}, missing)
}

// tombstoneSet remembers collection ids deleted through one façade instance.
type tombstoneSet struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func newTombstoneSet() *tombstoneSet {
	return &tombstoneSet{ids: make(map[int64]struct{})}
}

func (t *tombstoneSet) add(id int64) {
	t.mu.Lock()
	t.ids[id] = struct{}{}
	t.mu.Unlock()
}

func (t *tombstoneSet) remove(id int64) {
	t.mu.Lock()
	delete(t.ids, id)
	t.mu.Unlock()
}

func (t *tombstoneSet) contains(id int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[id]
	return ok
}

func (t *tombstoneSet) filter(records []collections.Collection) []collections.Collection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.ids) == 0 {
		return records
	}
	visible := make([]collections.Collection, 0, len(records))
	for _, record := range records {
		if _, deleted := t.ids[record.ID]; !deleted {
			visible = append(visible, record)
		}
	}
	return visible
}
