package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"case_portal_go/models"
	"case_portal_go/services/policy"

	"gorm.io/gorm"
)

// ErrUsernameTaken is returned when registering or renaming onto an existing username
var ErrUsernameTaken = fmt.Errorf("%w: username already exists", ErrInvalidInput)

// AccountService manages users, handlers and profiles
type AccountService struct {
	db    *gorm.DB
	files FileStore
}

func NewAccountService(db *gorm.DB, files FileStore) *AccountService {
	return &AccountService{db: db, files: files}
}

// NewAccount is the input for user and handler creation
type NewAccount struct {
	Username    string
	Email       string
	Password    string
	PhoneNumber string
}

func (a NewAccount) validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if a.Email != "" {
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return fmt.Errorf("%w: invalid email address", ErrInvalidInput)
		}
	}
	return ValidatePassword(a.Password, a.Username)
}

// RegisterUser creates a citizen account holding no capabilities
func (s *AccountService) RegisterUser(ctx context.Context, in NewAccount) (*models.User, error) {
	return s.create(ctx, in, false, nil)
}

// AddHandler creates an account in the handler group
func (s *AccountService) AddHandler(ctx context.Context, actor policy.Principal, in NewAccount) (*models.User, error) {
	if !policy.CanManageAccounts(actor) {
		return nil, ErrUnauthorized
	}
	return s.create(ctx, in, false, []string{models.GroupHandler})
}

// CreateSuperuser is used by the CLI only
func (s *AccountService) CreateSuperuser(ctx context.Context, in NewAccount) (*models.User, error) {
	return s.create(ctx, in, true, nil)
}

func (s *AccountService) create(ctx context.Context, in NewAccount, superuser bool, groups []string) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:    strings.TrimSpace(in.Username),
		Email:       strings.TrimSpace(in.Email),
		Password:    hash,
		IsSuperuser: superuser,
		IsActive:    true,
	}
	if in.PhoneNumber != "" {
		phone := strings.TrimSpace(in.PhoneNumber)
		user.PhoneNumber = &phone
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Unscoped().Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		for _, name := range groups {
			group, err := ensureGroup(tx, name)
			if err != nil {
				return err
			}
			if err := tx.Model(user).Association("Groups").Append(group); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, user.ID)
}

func ensureGroup(tx *gorm.DB, name string) (*models.Group, error) {
	group := &models.Group{Name: name}
	if err := tx.Where(models.Group{Name: name}).FirstOrCreate(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

// GetUser loads an active-or-inactive, non-deleted user with groups
func (s *AccountService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Groups").Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

func handlerMembers(db *gorm.DB) *gorm.DB {
	return db.Table("user_groups").
		Select("user_groups.user_id").
		Joins(`JOIN "groups" ON "groups".id = user_groups.group_id`).
		Where(`"groups".name = ?`, models.GroupHandler)
}

// ListHandlers returns members of the handler group, ordered by username
func (s *AccountService) ListHandlers(ctx context.Context, actor policy.Principal) ([]models.User, error) {
	if !policy.CanManageAccounts(actor) {
		return nil, ErrUnauthorized
	}
	var users []models.User
	db := s.db.WithContext(ctx)
	err := db.Preload("Groups").
		Where("is_superuser = ? AND id IN (?)", false, handlerMembers(db)).
		Order("username").
		Find(&users).Error
	return users, err
}

// ListUsers returns citizens: neither superusers nor handlers
func (s *AccountService) ListUsers(ctx context.Context, actor policy.Principal) ([]models.User, error) {
	if !policy.CanManageAccounts(actor) {
		return nil, ErrUnauthorized
	}
	var users []models.User
	db := s.db.WithContext(ctx)
	err := db.Where("is_superuser = ? AND id NOT IN (?)", false, handlerMembers(db)).
		Order("username").
		Find(&users).Error
	return users, err
}

// RemoveHandler deletes the account only when it is in the handler group
func (s *AccountService) RemoveHandler(ctx context.Context, actor policy.Principal, id string) error {
	if !policy.CanManageAccounts(actor) {
		return ErrUnauthorized
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !user.InGroup(models.GroupHandler) {
		return fmt.Errorf("user %s is not a handler: %w", id, ErrInvalidInput)
	}
	return s.remove(ctx, user)
}

// RemoveUser deletes any account except a superuser
func (s *AccountService) RemoveUser(ctx context.Context, actor policy.Principal, id string) error {
	if !policy.CanManageAccounts(actor) {
		return ErrUnauthorized
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user.IsSuperuser {
		return ErrUnauthorized
	}
	return s.remove(ctx, user)
}

// remove soft-deletes so cases and history keep resolving the username
func (s *AccountService) remove(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(user).Error; err != nil {
			return err
		}
		return DeleteAllUserSessions(tx, user.ID)
	})
}

// ProfileUpdate carries the editable profile fields. Nil leaves a field unchanged.
type ProfileUpdate struct {
	Username    *string
	Email       *string
	PhoneNumber *string
	Image       *Attachment
}

// UpdateProfile edits the caller's own account
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name == "" {
			return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
		}
		if name != user.Username {
			var count int64
			s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("username = ? AND id <> ?", name, userID).Count(&count)
			if count > 0 {
				return nil, ErrUsernameTaken
			}
			updates["username"] = name
		}
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
			}
		}
		updates["email"] = email
	}
	if in.PhoneNumber != nil {
		updates["phone_number"] = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.Image != nil {
		if s.files == nil {
			return nil, errors.New("file storage is not configured")
		}
		stored, err := s.files.Put(ctx, ProfileImageKey(userID, in.Image.Name), in.Image.Body, in.Image.ContentType, in.Image.Size)
		if err != nil {
			return nil, err
		}
		updates["profile_image"] = stored.Key
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetUser(ctx, userID)
}

// ChangePassword verifies the old password, stores the new one and ends every
// other session of the user. keepToken survives.
func (s *AccountService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, keepToken string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(oldPassword, user.Password) {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(newPassword, user.Username); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password", hash).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND token <> ?", userID, keepToken).Delete(&models.Session{}).Error
	})
}

// AdminOverview is the administrator dashboard
type AdminOverview struct {
	Stats         *DirectoryStats `json:"stats"`
	CasesPerDay   []DayCount      `json:"cases_per_day"`
	UsersCount    int64           `json:"users_count"`
	HandlersCount int64           `json:"handlers_count"`
}

// Counts returns the number of citizens and handlers
func (s *AccountService) Counts(ctx context.Context) (users, handlers int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&models.User{}).Where("is_superuser = ? AND id IN (?)", false, handlerMembers(db)).Count(&handlers).Error; err != nil {
		return 0, 0, err
	}
	err = db.Model(&models.User{}).Where("is_superuser = ? AND id NOT IN (?)", false, handlerMembers(db)).Count(&users).Error
	return users, handlers, err
}
