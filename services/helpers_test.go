package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"case_portal_go/models"
	"case_portal_go/services/lifecycle"
	"case_portal_go/services/policy"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a private in-memory database. A single connection keeps
// concurrent callers serialised the way the WAL file database would.
func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:mem_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	assert.NoError(t, err)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{}, &models.Group{}, &models.Session{},
		&models.Case{}, &models.CaseHistory{}, &models.CaseMessage{},
		&models.Notification{}, &models.AuditLog{},
	)
	assert.NoError(t, err)
	return db
}

func stringPtr(s string) *string {
	return &s
}

type fixture struct {
	db       *gorm.DB
	svc      *CaseService
	files    *memoryStore
	clock    *stepClock
	admin    policy.Principal
	handler  policy.Principal
	handler2 policy.Principal
	citizen  policy.Principal
	stranger policy.Principal
}

func createUser(t *testing.T, db *gorm.DB, username string, superuser bool, groups ...string) *models.User {
	u := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		Password:    "not-a-hash",
		IsSuperuser: superuser,
		IsActive:    true,
		PhoneNumber: stringPtr("+254700000001"),
	}
	assert.NoError(t, db.Create(u).Error)
	for _, name := range groups {
		g, err := ensureGroup(db, name)
		assert.NoError(t, err)
		assert.NoError(t, db.Model(u).Association("Groups").Append(g))
	}
	var loaded models.User
	assert.NoError(t, db.Preload("Groups").First(&loaded, "id = ?", u.ID).Error)
	return &loaded
}

func newFixture(t *testing.T, opts ...CaseServiceOption) *fixture {
	return newFixtureWithMachine(t, lifecycle.New(), opts...)
}

func newFixtureWithMachine(t *testing.T, m *lifecycle.Machine, opts ...CaseServiceOption) *fixture {
	db := setupTestDB(t)
	files := newMemoryStore()
	f := &fixture{
		db:       db,
		files:    files,
		admin:    policy.PrincipalFor(createUser(t, db, "admin", true)),
		handler:  policy.PrincipalFor(createUser(t, db, "handler", false, models.GroupHandler)),
		handler2: policy.PrincipalFor(createUser(t, db, "handler2", false, models.GroupHandler)),
		citizen:  policy.PrincipalFor(createUser(t, db, "citizen", false)),
		stranger: policy.PrincipalFor(createUser(t, db, "stranger", false)),
	}
	f.svc = NewCaseService(db, m, append([]CaseServiceOption{WithFileStore(files)}, opts...)...)
	f.clock = newStepClock(time.Now().Add(time.Hour))
	f.svc.now = f.clock.Now
	return f
}

// stepClock moves forward one second per reading, starting ahead of the
// wall clock gorm stamps created_at with
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{t: start}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (f *fixture) register(t *testing.T, title string, anonymous bool) *models.Case {
	c, err := f.svc.RegisterCase(context.Background(), CaseFields{Title: title, Description: "details"}, f.citizen, anonymous, nil)
	assert.NoError(t, err)
	return c
}

// seedCase writes a case directly at any status, bypassing the service
func (f *fixture) seedCase(t *testing.T, title, status string, assignee *policy.Principal) *models.Case {
	c := &models.Case{Title: title, Description: "seeded", Status: status, CreatedByID: f.citizen.ID}
	if assignee != nil {
		c.AssignedToID = stringPtr(assignee.ID)
	}
	assert.NoError(t, f.db.Create(c).Error)
	return c
}

func (f *fixture) historyLen(t *testing.T, caseID string) int {
	var n int64
	assert.NoError(t, f.db.Model(&models.CaseHistory{}).Where("case_id = ?", caseID).Count(&n).Error)
	return int(n)
}

func (f *fixture) status(t *testing.T, caseID string) string {
	return f.load(t, caseID).Status
}

// load reads the stored row, bypassing the service
func (f *fixture) load(t *testing.T, caseID string) models.Case {
	var c models.Case
	assert.NoError(t, f.db.First(&c, "id = ?", caseID).Error)
	return c
}

// memoryStore is a FileStore kept in a map
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Put(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*StoredObject, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return &StoredObject{Key: key, Size: int64(len(data)), URL: m.URL(key)}, nil
}

func (m *memoryStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), contentTypeFor(key), nil
}

func (m *memoryStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) SignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return m.URL(key) + "?expires=" + fmt.Sprint(int(expiration.Seconds())), nil
}

func (m *memoryStore) URL(key string) string {
	return "https://files.test/" + key
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// MockNotifier records assignment notices
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) CaseAssigned(ctx context.Context, c models.Case, handler models.User) (Delivery, error) {
	args := m.Called(ctx, c, handler)
	return args.Get(0).(Delivery), args.Error(1)
}

// fakeRenderer returns a fixed document and remembers the HTML it was given
type fakeRenderer struct {
	html string
	err  error
}

func (r *fakeRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	r.html = html
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.4 fake"), nil
}

func textAttachment(name, body string) *Attachment {
	return &Attachment{Name: name, ContentType: "text/plain", Size: int64(len(body)), Body: bytes.NewBufferString(body)}
}
