package users

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PermissionList is an explicit permission grant stored as a JSON array.
type PermissionList []string

// GormDataType stores the list as text.
func (PermissionList) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (p PermissionList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan implements sql.Scanner.
func (p *PermissionList) Scan(src any) error {
	var raw []byte
	switch typed := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		raw = []byte(typed)
	case []byte:
		raw = typed
	default:
		return fmt.Errorf("users: cannot scan %T into permission list", src)
	}
	if strings.TrimSpace(string(raw)) == "" {
		*p = nil
		return nil
	}
	var decoded []string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}

// User is an account of the coordination platform.
type User struct {
	ID              string         `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Email           string         `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	FirstName       string         `gorm:"column:first_name;size:190" json:"firstName"`
	LastName        string         `gorm:"column:last_name;size:190" json:"lastName"`
	DisplayName     string         `gorm:"column:display_name;size:320" json:"displayName"`
	ProfileImageURL string         `gorm:"column:profile_image_url;size:512" json:"profileImageUrl"`
	Role            string         `gorm:"column:role;size:32;not null;default:'volunteer'" json:"role"`
	Permissions     PermissionList `gorm:"column:permissions" json:"permissions"`
	IsActive        bool           `gorm:"column:is_active;not null" json:"isActive"`
	LastLoginAt     *time.Time     `gorm:"column:last_login_at" json:"lastLoginAt"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Name returns the best available human-readable name.
func (u User) Name() string {
	if name := normalize(u.DisplayName); name != "" {
		return name
	}
	if full := normalize(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Email
}

// UserUpdate is a partial user update.
type UserUpdate struct {
	DisplayName     *string         `json:"displayName"`
	ProfileImageURL *string         `json:"profileImageUrl"`
	Role            *string         `json:"role"`
	Permissions     *PermissionList `json:"permissions"`
	IsActive        *bool           `json:"isActive"`
	LastLoginAt     *time.Time      `json:"lastLoginAt"`
}

// ApplyTo mutates the user in place.
func (u UserUpdate) ApplyTo(user *User) {
	if user == nil {
		return
	}
	if u.DisplayName != nil {
		user.DisplayName = normalize(*u.DisplayName)
	}
	if u.ProfileImageURL != nil {
		user.ProfileImageURL = normalize(*u.ProfileImageURL)
	}
	if u.Role != nil {
		user.Role = strings.ToLower(normalize(*u.Role))
	}
	if u.Permissions != nil {
		user.Permissions = append(PermissionList(nil), (*u.Permissions)...)
	}
	if u.IsActive != nil {
		user.IsActive = *u.IsActive
	}
	if u.LastLoginAt != nil {
		loginAt := *u.LastLoginAt
		user.LastLoginAt = &loginAt
	}
}

// Columns maps the update onto storage column names.
func (u UserUpdate) Columns() map[string]any {
	columns := map[string]any{}
	if u.DisplayName != nil {
		columns["display_name"] = normalize(*u.DisplayName)
	}
	if u.ProfileImageURL != nil {
		columns["profile_image_url"] = normalize(*u.ProfileImageURL)
	}
	if u.Role != nil {
		columns["role"] = strings.ToLower(normalize(*u.Role))
	}
	if u.Permissions != nil {
		columns["permissions"] = append(PermissionList(nil), (*u.Permissions)...)
	}
	if u.IsActive != nil {
		columns["is_active"] = *u.IsActive
	}
	if u.LastLoginAt != nil {
		columns["last_login_at"] = *u.LastLoginAt
	}
	return columns
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
