// Package storage exposes one data-access surface over a durable primary store
// and an in-process fallback store.
package storage

import (
	"context"
	"errors"

	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/directory"
	"github.com/sandwichproject/coordinator/internal/messaging"
	"github.com/sandwichproject/coordinator/internal/projects"
	"github.com/sandwichproject/coordinator/internal/users"
)

// ErrStoreUnavailable indicates both the primary and the fallback store failed.
var ErrStoreUnavailable = errors.New("storage: store unavailable")

// Update-style methods return a nil record (and nil error) when no such record
// exists; delete-style methods return false. Both count as soft failures.

// CollectionStore persists sandwich collection records.
type CollectionStore interface {
	GetAllSandwichCollections(ctx context.Context) ([]collections.Collection, error)
	GetSandwichCollection(ctx context.Context, id int64) (*collections.Collection, error)
	// CreateSandwichCollection assigns an id when record.ID is zero and keeps it otherwise.
	CreateSandwichCollection(ctx context.Context, record collections.Collection) (collections.Collection, error)
	UpdateSandwichCollection(ctx context.Context, id int64, update collections.CollectionUpdate) (*collections.Collection, error)
	DeleteSandwichCollection(ctx context.Context, id int64) (bool, error)
	UpdateCollectionHostNames(ctx context.Context, oldName, newName string) (int64, error)
}

// HostStore persists hosts.
type HostStore interface {
	GetAllHosts(ctx context.Context) ([]directory.Host, error)
	GetHost(ctx context.Context, id int64) (*directory.Host, error)
	CreateHost(ctx context.Context, host directory.Host) (directory.Host, error)
	UpdateHost(ctx context.Context, id int64, update directory.HostUpdate) (*directory.Host, error)
	DeleteHost(ctx context.Context, id int64) (bool, error)
}

// RecipientStore persists recipients.
type RecipientStore interface {
	GetAllRecipients(ctx context.Context) ([]directory.Recipient, error)
	GetRecipient(ctx context.Context, id int64) (*directory.Recipient, error)
	CreateRecipient(ctx context.Context, recipient directory.Recipient) (directory.Recipient, error)
	UpdateRecipient(ctx context.Context, id int64, update directory.RecipientUpdate) (*directory.Recipient, error)
	DeleteRecipient(ctx context.Context, id int64) (bool, error)
}

// DriverStore persists drivers.
type DriverStore interface {
	GetAllDrivers(ctx context.Context) ([]directory.Driver, error)
	GetDriver(ctx context.Context, id int64) (*directory.Driver, error)
	CreateDriver(ctx context.Context, driver directory.Driver) (directory.Driver, error)
	UpdateDriver(ctx context.Context, id int64, update directory.DriverUpdate) (*directory.Driver, error)
	DeleteDriver(ctx context.Context, id int64) (bool, error)
}

// MessageStore persists messages and their threads.
type MessageStore interface {
	GetAllMessages(ctx context.Context) ([]messaging.Message, error)
	GetRecentMessages(ctx context.Context, limit int) ([]messaging.Message, error)
	GetMessage(ctx context.Context, id int64) (*messaging.Message, error)
	CreateMessage(ctx context.Context, message messaging.Message) (messaging.Message, error)
	// CreateReply returns nil when the parent does not exist.
	CreateReply(ctx context.Context, reply messaging.Message, parentID int64) (*messaging.Message, error)
	GetThreadMessages(ctx context.Context, threadID int64) ([]messaging.Message, error)
	DeleteMessage(ctx context.Context, id int64) (bool, error)
}

// ProjectStore persists volunteer projects.
type ProjectStore interface {
	GetAllProjects(ctx context.Context) ([]projects.Project, error)
	GetProject(ctx context.Context, id int64) (*projects.Project, error)
	CreateProject(ctx context.Context, project projects.Project) (projects.Project, error)
	// UpdateProject applies the update after resolving it against the stored project.
	UpdateProject(ctx context.Context, id int64, update projects.ProjectUpdate) (*projects.Project, error)
	DeleteProject(ctx context.Context, id int64) (bool, error)
}

// UserStore persists user accounts.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	GetAllUsers(ctx context.Context) ([]users.User, error)
	CreateUser(ctx context.Context, user users.User) (users.User, error)
	UpdateUser(ctx context.Context, id string, update users.UserUpdate) (*users.User, error)
}

// Store is the complete persistence surface implemented by each concrete store.
type Store interface {
	CollectionStore
	HostStore
	RecipientStore
	DriverStore
	MessageStore
	ProjectStore
	UserStore
}
