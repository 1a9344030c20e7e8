package storage

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/directory"
	"github.com/sandwichproject/coordinator/internal/messaging"
	"github.com/sandwichproject/coordinator/internal/projects"
	"github.com/sandwichproject/coordinator/internal/users"
)

type table[T any] struct {
	rows   map[int64]T
	nextID int64
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int64]T)}
}

// assign returns the id for a new row, honouring a caller-supplied id.
func (t *table[T]) assign(requested int64) int64 {
	if requested <= 0 {
		t.nextID++
		return t.nextID
	}
	if requested > t.nextID {
		t.nextID = requested
	}
	return requested
}

func (t *table[T]) get(id int64) *T {
	row, ok := t.rows[id]
	if !ok {
		return nil
	}
	return &row
}

func (t *table[T]) remove(id int64) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	return true
}

func (t *table[T]) sorted(compare func(a, b T) int) []T {
	rows := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, row)
	}
	slices.SortFunc(rows, compare)
	return rows
}

// MemoryStore is the in-process, non-durable Store implementation.
type MemoryStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	collection *table[collections.Collection]
	hosts      *table[directory.Host]
	recipients *table[directory.Recipient]
	drivers    *table[directory.Driver]
	messages   *table[messaging.Message]
	projects   *table[projects.Project]
	users      map[string]users.User
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		collection: newTable[collections.Collection](),
		hosts:      newTable[directory.Host](),
		recipients: newTable[directory.Recipient](),
		drivers:    newTable[directory.Driver](),
		messages:   newTable[messaging.Message](),
		projects:   newTable[projects.Project](),
		users:      make(map[string]users.User),
	}
}

func (s *MemoryStore) timestamp() time.Time {
	return s.now().UTC()
}

// GetAllSandwichCollections returns every record, newest collection date first.
func (s *MemoryStore) GetAllSandwichCollections(ctx context.Context) ([]collections.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.sorted(compareCollections), nil
}

func (s *MemoryStore) GetSandwichCollection(ctx context.Context, id int64) (*collections.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.get(id), nil
}

func (s *MemoryStore) CreateSandwichCollection(ctx context.Context, record collections.Collection) (collections.Collection, error) {
	if err := ctx.Err(); err != nil {
		return collections.Collection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = s.collection.assign(record.ID)
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = s.timestamp()
	}
	s.collection.rows[record.ID] = record
	return record, nil
}

func (s *MemoryStore) UpdateSandwichCollection(ctx context.Context, id int64, update collections.CollectionUpdate) (*collections.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.collection.get(id)
	if record == nil {
		return nil, nil
	}
	update.ApplyTo(record)
	s.collection.rows[id] = *record
	return record, nil
}

func (s *MemoryStore) DeleteSandwichCollection(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.remove(id), nil
}

// UpdateCollectionHostNames renames the host on every matching record in one locked pass.
func (s *MemoryStore) UpdateCollectionHostNames(ctx context.Context, oldName, newName string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for id, record := range s.collection.rows {
		if record.HostName != oldName {
			continue
		}
		record.HostName = newName
		s.collection.rows[id] = record
		affected++
	}
	return affected, nil
}

func (s *MemoryStore) GetAllHosts(ctx context.Context) ([]directory.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hosts.sorted(func(a, b directory.Host) int { return compareNamed(a.Name, a.ID, b.Name, b.ID) }), nil
}

func (s *MemoryStore) GetHost(ctx context.Context, id int64) (*directory.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hosts.get(id), nil
}

func (s *MemoryStore) CreateHost(ctx context.Context, host directory.Host) (directory.Host, error) {
	if err := ctx.Err(); err != nil {
		return directory.Host{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	host.ID = s.hosts.assign(host.ID)
	now := s.timestamp()
	host.CreatedAt, host.UpdatedAt = now, now
	s.hosts.rows[host.ID] = host
	return host, nil
}

func (s *MemoryStore) UpdateHost(ctx context.Context, id int64, update directory.HostUpdate) (*directory.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	host := s.hosts.get(id)
	if host == nil {
		return nil, nil
	}
	update.ApplyTo(host)
	host.UpdatedAt = s.timestamp()
	s.hosts.rows[id] = *host
	return host, nil
}

func (s *MemoryStore) DeleteHost(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts.remove(id), nil
}

func (s *MemoryStore) GetAllRecipients(ctx context.Context) ([]directory.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recipients.sorted(func(a, b directory.Recipient) int { return compareNamed(a.Name, a.ID, b.Name, b.ID) }), nil
}

func (s *MemoryStore) GetRecipient(ctx context.Context, id int64) (*directory.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recipients.get(id), nil
}

func (s *MemoryStore) CreateRecipient(ctx context.Context, recipient directory.Recipient) (directory.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return directory.Recipient{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recipient.ID = s.recipients.assign(recipient.ID)
	now := s.timestamp()
	recipient.CreatedAt, recipient.UpdatedAt = now, now
	s.recipients.rows[recipient.ID] = recipient
	return recipient, nil
}

func (s *MemoryStore) UpdateRecipient(ctx context.Context, id int64, update directory.RecipientUpdate) (*directory.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recipient := s.recipients.get(id)
	if recipient == nil {
		return nil, nil
	}
	update.ApplyTo(recipient)
	recipient.UpdatedAt = s.timestamp()
	s.recipients.rows[id] = *recipient
	return recipient, nil
}

func (s *MemoryStore) DeleteRecipient(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipients.remove(id), nil
}

func (s *MemoryStore) GetAllDrivers(ctx context.Context) ([]directory.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drivers.sorted(func(a, b directory.Driver) int { return compareNamed(a.Name, a.ID, b.Name, b.ID) }), nil
}

func (s *MemoryStore) GetDriver(ctx context.Context, id int64) (*directory.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drivers.get(id), nil
}

func (s *MemoryStore) CreateDriver(ctx context.Context, driver directory.Driver) (directory.Driver, error) {
	if err := ctx.Err(); err != nil {
		return directory.Driver{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	driver.ID = s.drivers.assign(driver.ID)
	now := s.timestamp()
	driver.CreatedAt, driver.UpdatedAt = now, now
	s.drivers.rows[driver.ID] = driver
	return driver, nil
}

func (s *MemoryStore) UpdateDriver(ctx context.Context, id int64, update directory.DriverUpdate) (*directory.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	driver := s.drivers.get(id)
	if driver == nil {
		return nil, nil
	}
	update.ApplyTo(driver)
	driver.UpdatedAt = s.timestamp()
	s.drivers.rows[id] = *driver
	return driver, nil
}

func (s *MemoryStore) DeleteDriver(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drivers.remove(id), nil
}

// GetAllProjects returns every project, most recently created first.
func (s *MemoryStore) GetAllProjects(ctx context.Context) ([]projects.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects.sorted(func(a, b projects.Project) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	}), nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id int64) (*projects.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects.get(id), nil
}

func (s *MemoryStore) CreateProject(ctx context.Context, project projects.Project) (projects.Project, error) {
	if err := ctx.Err(); err != nil {
		return projects.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	project.ID = s.projects.assign(project.ID)
	now := s.timestamp()
	project.CreatedAt, project.UpdatedAt = now, now
	s.projects.rows[project.ID] = project
	return project, nil
}

func (s *MemoryStore) UpdateProject(ctx context.Context, id int64, update projects.ProjectUpdate) (*projects.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	project := s.projects.get(id)
	if project == nil {
		return nil, nil
	}
	update.Resolve(*project).ApplyTo(project)
	project.UpdatedAt = s.timestamp()
	s.projects.rows[id] = *project
	return project, nil
}

func (s *MemoryStore) DeleteProject(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects.remove(id), nil
}

// GetAllMessages returns every message, newest first.
func (s *MemoryStore) GetAllMessages(ctx context.Context) ([]messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.sorted(compareNewestFirst), nil
}

func (s *MemoryStore) GetRecentMessages(ctx context.Context, limit int) ([]messaging.Message, error) {
	all, err := s.GetAllMessages(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, id int64) (*messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.get(id), nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, message messaging.Message) (messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return messaging.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertMessageLocked(message), nil
}

func (s *MemoryStore) CreateReply(ctx context.Context, reply messaging.Message, parentID int64) (*messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	parent := s.messages.get(parentID)
	if parent == nil {
		return nil, nil
	}
	stored := s.insertMessageLocked(messaging.PrepareReply(reply, *parent))
	parent.ReplyCount++
	s.messages.rows[parent.ID] = *parent
	return &stored, nil
}

func (s *MemoryStore) insertMessageLocked(message messaging.Message) messaging.Message {
	message.ID = s.messages.assign(message.ID)
	if message.ThreadID == 0 {
		message.ThreadID = message.ID
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.timestamp()
	}
	if message.Priority == "" {
		message.Priority = messaging.PriorityNormal
	}
	s.messages.rows[message.ID] = message
	return message
}

// GetThreadMessages returns the thread in posting order.
func (s *MemoryStore) GetThreadMessages(ctx context.Context, threadID int64) ([]messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread := make([]messaging.Message, 0)
	for _, message := range s.messages.sorted(compareOldestFirst) {
		if message.ThreadID == threadID {
			thread = append(thread, message)
		}
	}
	return thread, nil
}

func (s *MemoryStore) DeleteMessage(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.remove(id), nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			found := user
			return &found, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetAllUsers(ctx context.Context) ([]users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]users.User, 0, len(s.users))
	for _, user := range s.users {
		all = append(all, user)
	}
	slices.SortFunc(all, func(a, b users.User) int {
		return cmp.Or(strings.Compare(a.Email, b.Email), strings.Compare(a.ID, b.ID))
	})
	return all, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user users.User) (users.User, error) {
	if err := ctx.Err(); err != nil {
		return users.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.timestamp()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, id string, update users.UserUpdate) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	update.ApplyTo(&user)
	user.UpdatedAt = s.timestamp()
	s.users[id] = user
	return &user, nil
}

func compareCollections(a, b collections.Collection) int {
	return cmp.Or(strings.Compare(b.CollectionDate, a.CollectionDate), cmp.Compare(b.ID, a.ID))
}

func compareNamed(aName string, aID int64, bName string, bID int64) int {
	return cmp.Or(strings.Compare(aName, bName), cmp.Compare(aID, bID))
}

func compareNewestFirst(a, b messaging.Message) int {
	return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
}

func compareOldestFirst(a, b messaging.Message) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
}
