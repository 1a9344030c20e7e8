package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/directory"
	"github.com/sandwichproject/coordinator/internal/messaging"
	"github.com/sandwichproject/coordinator/internal/projects"
	"github.com/sandwichproject/coordinator/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

const (
	orderCollections = "collection_date DESC, id DESC"
	orderByName      = "name ASC, id ASC"
	orderNewestFirst = "created_at DESC, id DESC"
	orderOldestFirst = "created_at ASC, id ASC"
	orderUsers       = "email ASC, id ASC"
)

// StoreError carries a stable operation.reason code alongside the cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// DurableStore is the GORM-backed Store used as the primary.
type DurableStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDurableStore wraps an opened and migrated database handle.
func NewDurableStore(db *gorm.DB, logger *zap.Logger) (*DurableStore, error) {
	if db == nil {
		return nil, newStoreError("storage.durable.new", "missing_database", errMissingDatabase)
	}
	if logger == nil {
		logger = noOpLogger
	}
	return &DurableStore{db: db, logger: logger}, nil
}

func (s *DurableStore) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("durable store error", attrs...)
}

func (s *DurableStore) fail(operation, reason string, err error, fields ...zap.Field) error {
	s.logError(operation, reason, err, fields...)
	return newStoreError(operation, reason, err)
}

func findAll[T any](ctx context.Context, s *DurableStore, operation, order string, query string, args ...any) ([]T, error) {
	rows := make([]T, 0)
	tx := s.db.WithContext(ctx).Order(order)
	if query != "" {
		tx = tx.Where(query, args...)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, s.fail(operation, "query_failed", err)
	}
	return rows, nil
}

func findByID[T any](ctx context.Context, s *DurableStore, operation string, id any) (*T, error) {
	var row T
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(operation, "select_failed", err, zap.Any("id", id))
	}
	return &row, nil
}

func insert[T any](ctx context.Context, s *DurableStore, operation string, row T) (T, error) {
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		var zero T
		return zero, s.fail(operation, "insert_failed", err)
	}
	return row, nil
}

func updateByID[T any](ctx context.Context, s *DurableStore, operation string, id any, columns map[string]any) (*T, error) {
	return updateCurrent(ctx, s, operation, id, func(T) map[string]any { return columns })
}

// updateCurrent computes the changed columns from the row as currently stored,
// inside the same transaction that writes them.
func updateCurrent[T any](ctx context.Context, s *DurableStore, operation string, id any, changes func(current T) map[string]any) (*T, error) {
	var updated *T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row T
		err := tx.Where("id = ?", id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return s.fail(operation, "select_failed", err, zap.Any("id", id))
		}
		if columns := changes(row); len(columns) > 0 {
			if err := tx.Model(&row).Updates(columns).Error; err != nil {
				return s.fail(operation, "update_failed", err, zap.Any("id", id))
			}
			if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
				return s.fail(operation, "reload_failed", err, zap.Any("id", id))
			}
		}
		updated = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func deleteByID[T any](ctx context.Context, s *DurableStore, operation string, id any) (bool, error) {
	var model T
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model)
	if result.Error != nil {
		return false, s.fail(operation, "delete_failed", result.Error, zap.Any("id", id))
	}
	return result.RowsAffected > 0, nil
}

func (s *DurableStore) GetAllSandwichCollections(ctx context.Context) ([]collections.Collection, error) {
	return findAll[collections.Collection](ctx, s, "storage.collections.list", orderCollections, "")
}

func (s *DurableStore) GetSandwichCollection(ctx context.Context, id int64) (*collections.Collection, error) {
	return findByID[collections.Collection](ctx, s, "storage.collections.get", id)
}

func (s *DurableStore) CreateSandwichCollection(ctx context.Context, record collections.Collection) (collections.Collection, error) {
	return insert(ctx, s, "storage.collections.create", record)
}

func (s *DurableStore) UpdateSandwichCollection(ctx context.Context, id int64, update collections.CollectionUpdate) (*collections.Collection, error) {
	return updateByID[collections.Collection](ctx, s, "storage.collections.update", id, update.Columns())
}

func (s *DurableStore) DeleteSandwichCollection(ctx context.Context, id int64) (bool, error) {
	return deleteByID[collections.Collection](ctx, s, "storage.collections.delete", id)
}

// UpdateCollectionHostNames renames the host on every matching record in a single statement.
func (s *DurableStore) UpdateCollectionHostNames(ctx context.Context, oldName, newName string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&collections.Collection{}).
		Where("host_name = ?", oldName).
		Update("host_name", newName)
	if result.Error != nil {
		return 0, s.fail("storage.collections.rename_host", "update_failed", result.Error,
			zap.String("old_name", oldName), zap.String("new_name", newName))
	}
	return result.RowsAffected, nil
}

func (s *DurableStore) GetAllHosts(ctx context.Context) ([]directory.Host, error) {
	return findAll[directory.Host](ctx, s, "storage.hosts.list", orderByName, "")
}

func (s *DurableStore) GetHost(ctx context.Context, id int64) (*directory.Host, error) {
	return findByID[directory.Host](ctx, s, "storage.hosts.get", id)
}

func (s *DurableStore) CreateHost(ctx context.Context, host directory.Host) (directory.Host, error) {
	return insert(ctx, s, "storage.hosts.create", host)
}

func (s *DurableStore) UpdateHost(ctx context.Context, id int64, update directory.HostUpdate) (*directory.Host, error) {
	return updateByID[directory.Host](ctx, s, "storage.hosts.update", id, update.Columns())
}

func (s *DurableStore) DeleteHost(ctx context.Context, id int64) (bool, error) {
	return deleteByID[directory.Host](ctx, s, "storage.hosts.delete", id)
}

func (s *DurableStore) GetAllRecipients(ctx context.Context) ([]directory.Recipient, error) {
	return findAll[directory.Recipient](ctx, s, "storage.recipients.list", orderByName, "")
}

func (s *DurableStore) GetRecipient(ctx context.Context, id int64) (*directory.Recipient, error) {
	return findByID[directory.Recipient](ctx, s, "storage.recipients.get", id)
}

func (s *DurableStore) CreateRecipient(ctx context.Context, recipient directory.Recipient) (directory.Recipient, error) {
	return insert(ctx, s, "storage.recipients.create", recipient)
}

func (s *DurableStore) UpdateRecipient(ctx context.Context, id int64, update directory.RecipientUpdate) (*directory.Recipient, error) {
	return updateByID[directory.Recipient](ctx, s, "storage.recipients.update", id, update.Columns())
}

func (s *DurableStore) DeleteRecipient(ctx context.Context, id int64) (bool, error) {
	return deleteByID[directory.Recipient](ctx, s, "storage.recipients.delete", id)
}

func (s *DurableStore) GetAllDrivers(ctx context.Context) ([]directory.Driver, error) {
	return findAll[directory.Driver](ctx, s, "storage.drivers.list", orderByName, "")
}

func (s *DurableStore) GetDriver(ctx context.Context, id int64) (*directory.Driver, error) {
	return findByID[directory.Driver](ctx, s, "storage.drivers.get", id)
}

func (s *DurableStore) CreateDriver(ctx context.Context, driver directory.Driver) (directory.Driver, error) {
	return insert(ctx, s, "storage.drivers.create", driver)
}

func (s *DurableStore) UpdateDriver(ctx context.Context, id int64, update directory.DriverUpdate) (*directory.Driver, error) {
	return updateByID[directory.Driver](ctx, s, "storage.drivers.update", id, update.Columns())
}

func (s *DurableStore) DeleteDriver(ctx context.Context, id int64) (bool, error) {
	return deleteByID[directory.Driver](ctx, s, "storage.drivers.delete", id)
}

func (s *DurableStore) GetAllMessages(ctx context.Context) ([]messaging.Message, error) {
	return findAll[messaging.Message](ctx, s, "storage.messages.list", orderNewestFirst, "")
}

func (s *DurableStore) GetRecentMessages(ctx context.Context, limit int) ([]messaging.Message, error) {
	rows := make([]messaging.Message, 0)
	tx := s.db.WithContext(ctx).Order(orderNewestFirst)
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, s.fail("storage.messages.recent", "query_failed", err, zap.Int("limit", limit))
	}
	return rows, nil
}

func (s *DurableStore) GetMessage(ctx context.Context, id int64) (*messaging.Message, error) {
	return findByID[messaging.Message](ctx, s, "storage.messages.get", id)
}

// CreateMessage stores a thread root; the root's thread id is its own id.
func (s *DurableStore) CreateMessage(ctx context.Context, message messaging.Message) (messaging.Message, error) {
	const operation = "storage.messages.create"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return s.fail(operation, "insert_failed", err)
		}
		if message.ThreadID != 0 {
			return nil
		}
		message.ThreadID = message.ID
		if err := tx.Model(&message).Update("thread_id", message.ID).Error; err != nil {
			return s.fail(operation, "thread_assign_failed", err, zap.Int64("id", message.ID))
		}
		return nil
	})
	if err != nil {
		return messaging.Message{}, err
	}
	return message, nil
}

func (s *DurableStore) CreateReply(ctx context.Context, reply messaging.Message, parentID int64) (*messaging.Message, error) {
	const operation = "storage.messages.reply"
	var stored *messaging.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent messaging.Message
		err := tx.Where("id = ?", parentID).Take(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return s.fail(operation, "parent_select_failed", err, zap.Int64("parent_id", parentID))
		}
		record := messaging.PrepareReply(reply, parent)
		if err := tx.Create(&record).Error; err != nil {
			return s.fail(operation, "insert_failed", err, zap.Int64("parent_id", parentID))
		}
		if err := tx.Model(&messaging.Message{}).
			Where("id = ?", parentID).
			Update("reply_count", gorm.Expr("reply_count + ?", 1)).Error; err != nil {
			return s.fail(operation, "reply_count_failed", err, zap.Int64("parent_id", parentID))
		}
		stored = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *DurableStore) GetThreadMessages(ctx context.Context, threadID int64) ([]messaging.Message, error) {
	return findAll[messaging.Message](ctx, s, "storage.messages.thread", orderOldestFirst, "thread_id = ?", threadID)
}

func (s *DurableStore) DeleteMessage(ctx context.Context, id int64) (bool, error) {
	return deleteByID[messaging.Message](ctx, s, "storage.messages.delete", id)
}

func (s *DurableStore) GetUser(ctx context.Context, id string) (*users.User, error) {
	return findByID[users.User](ctx, s, "storage.users.get", id)
}

func (s *DurableStore) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	var user users.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("storage.users.get_by_email", "select_failed", err)
	}
	return &user, nil
}

func (s *DurableStore) GetAllUsers(ctx context.Context) ([]users.User, error) {
	return findAll[users.User](ctx, s, "storage.users.list", orderUsers, "")
}

func (s *DurableStore) CreateUser(ctx context.Context, user users.User) (users.User, error) {
	return insert(ctx, s, "storage.users.create", user)
}

func (s *DurableStore) UpdateUser(ctx context.Context, id string, update users.UserUpdate) (*users.User, error) {
	return updateByID[users.User](ctx, s, "storage.users.update", id, update.Columns())
}

func (s *DurableStore) GetAllProjects(ctx context.Context) ([]projects.Project, error) {
	return findAll[projects.Project](ctx, s, "storage.projects.list", orderNewestFirst, "")
}

func (s *DurableStore) GetProject(ctx context.Context, id int64) (*projects.Project, error) {
	return findByID[projects.Project](ctx, s, "storage.projects.get", id)
}

func (s *DurableStore) CreateProject(ctx context.Context, project projects.Project) (projects.Project, error) {
	return insert(ctx, s, "storage.projects.create", project)
}

func (s *DurableStore) UpdateProject(ctx context.Context, id int64, update projects.ProjectUpdate) (*projects.Project, error) {
	return updateCurrent(ctx, s, "storage.projects.update", id, func(current projects.Project) map[string]any {
		return update.Resolve(current).Columns()
	})
}

func (s *DurableStore) DeleteProject(ctx context.Context, id int64) (bool, error) {
	return deleteByID[projects.Project](ctx, s, "storage.projects.delete", id)
}
