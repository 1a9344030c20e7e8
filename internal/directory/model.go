package directory

import (
	"strings"
	"time"
)

// Status values shared by directory entries.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Host is a named collection location. Collections reference hosts by name.
type Host struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;size:320;not null;index" json:"name"`
	Email     string    `gorm:"column:email;size:320" json:"email"`
	Phone     string    `gorm:"column:phone;size:64" json:"phone"`
	Address   string    `gorm:"column:address;type:text" json:"address"`
	Status    string    `gorm:"column:status;size:32;not null;default:'active'" json:"status"`
	Notes     string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Host) TableName() string {
	return "hosts"
}

// HostInput is the payload for creating a host.
type HostInput struct {
	Name    string `json:"name" validate:"required,max=320"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=64"`
	Address string `json:"address"`
	Status  string `json:"status" validate:"omitempty,oneof=active inactive"`
	Notes   string `json:"notes"`
}

// Record converts the input into an unsaved host.
func (in HostInput) Record() Host {
	return Host{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
		Status:  statusOrDefault(in.Status),
		Notes:   in.Notes,
	}
}

// HostUpdate is a partial host update.
type HostUpdate struct {
	Name    *string `json:"name" validate:"omitnil,min=1,max=320"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone" validate:"omitnil,max=64"`
	Address *string `json:"address"`
	Status  *string `json:"status" validate:"omitnil,oneof=active inactive"`
	Notes   *string `json:"notes"`
}

// ApplyTo mutates the host in place.
func (u HostUpdate) ApplyTo(host *Host) {
	if host == nil {
		return
	}
	assignTrimmed(&host.Name, u.Name)
	assignTrimmed(&host.Email, u.Email)
	assignTrimmed(&host.Phone, u.Phone)
	assignTrimmed(&host.Address, u.Address)
	assignTrimmed(&host.Status, u.Status)
	if u.Notes != nil {
		host.Notes = *u.Notes
	}
}

// Columns maps the update onto storage column names.
func (u HostUpdate) Columns() map[string]any {
	columns := map[string]any{}
	putTrimmed(columns, "name", u.Name)
	putTrimmed(columns, "email", u.Email)
	putTrimmed(columns, "phone", u.Phone)
	putTrimmed(columns, "address", u.Address)
	putTrimmed(columns, "status", u.Status)
	if u.Notes != nil {
		columns["notes"] = *u.Notes
	}
	return columns
}

// Recipient is an organization that receives sandwiches.
type Recipient struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"column:name;size:320;not null;index" json:"name"`
	Phone          string    `gorm:"column:phone;size:64;not null" json:"phone"`
	Email          string    `gorm:"column:email;size:320" json:"email"`
	Address        string    `gorm:"column:address;type:text" json:"address"`
	ContactName    string    `gorm:"column:contact_name;size:320" json:"contactName"`
	Preferences    string    `gorm:"column:preferences;type:text" json:"preferences"`
	WeeklyEstimate int       `gorm:"column:weekly_estimate;not null;default:0" json:"weeklyEstimate"`
	Status         string    `gorm:"column:status;size:32;not null;default:'active'" json:"status"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Recipient) TableName() string {
	return "recipients"
}

// RecipientInput is the payload for creating a recipient.
type RecipientInput struct {
	Name           string `json:"name" validate:"required,max=320"`
	Phone          string `json:"phone" validate:"required,max=64"`
	Email          string `json:"email" validate:"omitempty,email"`
	Address        string `json:"address"`
	ContactName    string `json:"contactName" validate:"max=320"`
	Preferences    string `json:"preferences"`
	WeeklyEstimate int    `json:"weeklyEstimate" validate:"gte=0"`
	Status         string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// Record converts the input into an unsaved recipient.
func (in RecipientInput) Record() Recipient {
	return Recipient{
		Name:           strings.TrimSpace(in.Name),
		Phone:          strings.TrimSpace(in.Phone),
		Email:          strings.TrimSpace(in.Email),
		Address:        strings.TrimSpace(in.Address),
		ContactName:    strings.TrimSpace(in.ContactName),
		Preferences:    in.Preferences,
		WeeklyEstimate: in.WeeklyEstimate,
		Status:         statusOrDefault(in.Status),
	}
}

// RecipientUpdate is a partial recipient update.
type RecipientUpdate struct {
	Name           *string `json:"name" validate:"omitnil,min=1,max=320"`
	Phone          *string `json:"phone" validate:"omitnil,min=1,max=64"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Address        *string `json:"address"`
	ContactName    *string `json:"contactName" validate:"omitnil,max=320"`
	Preferences    *string `json:"preferences"`
	WeeklyEstimate *int    `json:"weeklyEstimate" validate:"omitnil,gte=0"`
	Status         *string `json:"status" validate:"omitnil,oneof=active inactive"`
}

// ApplyTo mutates the recipient in place.
func (u RecipientUpdate) ApplyTo(recipient *Recipient) {
	if recipient == nil {
		return
	}
	assignTrimmed(&recipient.Name, u.Name)
	assignTrimmed(&recipient.Phone, u.Phone)
	assignTrimmed(&recipient.Email, u.Email)
	assignTrimmed(&recipient.Address, u.Address)
	assignTrimmed(&recipient.ContactName, u.ContactName)
	assignTrimmed(&recipient.Status, u.Status)
	if u.Preferences != nil {
		recipient.Preferences = *u.Preferences
	}
	if u.WeeklyEstimate != nil {
		recipient.WeeklyEstimate = *u.WeeklyEstimate
	}
}

// Columns maps the update onto storage column names.
func (u RecipientUpdate) Columns() map[string]any {
	columns := map[string]any{}
	putTrimmed(columns, "name", u.Name)
	putTrimmed(columns, "phone", u.Phone)
	putTrimmed(columns, "email", u.Email)
	putTrimmed(columns, "address", u.Address)
	putTrimmed(columns, "contact_name", u.ContactName)
	putTrimmed(columns, "status", u.Status)
	if u.Preferences != nil {
		columns["preferences"] = *u.Preferences
	}
	if u.WeeklyEstimate != nil {
		columns["weekly_estimate"] = *u.WeeklyEstimate
	}
	return columns
}

// Driver is a volunteer who moves sandwiches between hosts and recipients.
type Driver struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name;size:320;not null;index" json:"name"`
	Phone       string    `gorm:"column:phone;size:64" json:"phone"`
	Email       string    `gorm:"column:email;size:320" json:"email"`
	Zone        string    `gorm:"column:zone;size:120" json:"zone"`
	VehicleType string    `gorm:"column:vehicle_type;size:120" json:"vehicleType"`
	VanApproved bool      `gorm:"column:van_approved;not null;default:false" json:"vanApproved"`
	IsActive    bool      `gorm:"column:is_active;not null" json:"isActive"`
	HostID      *int64    `gorm:"column:host_id;index" json:"hostId"`
	Notes       string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Driver) TableName() string {
	return "drivers"
}

// DriverInput is the payload for creating a driver.
type DriverInput struct {
	Name        string `json:"name" validate:"required,max=320"`
	Phone       string `json:"phone" validate:"max=64"`
	Email       string `json:"email" validate:"omitempty,email"`
	Zone        string `json:"zone" validate:"max=120"`
	VehicleType string `json:"vehicleType" validate:"max=120"`
	VanApproved bool   `json:"vanApproved"`
	IsActive    *bool  `json:"isActive"`
	HostID      *int64 `json:"hostId" validate:"omitnil,gt=0"`
	Notes       string `json:"notes"`
}

// Record converts the input into an unsaved driver. Drivers are active unless stated otherwise.
func (in DriverInput) Record() Driver {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return Driver{
		Name:        strings.TrimSpace(in.Name),
		Phone:       strings.TrimSpace(in.Phone),
		Email:       strings.TrimSpace(in.Email),
		Zone:        strings.TrimSpace(in.Zone),
		VehicleType: strings.TrimSpace(in.VehicleType),
		VanApproved: in.VanApproved,
		IsActive:    active,
		HostID:      in.HostID,
		Notes:       in.Notes,
	}
}

// DriverUpdate is a partial driver update.
type DriverUpdate struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=320"`
	Phone       *string `json:"phone" validate:"omitnil,max=64"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Zone        *string `json:"zone" validate:"omitnil,max=120"`
	VehicleType *string `json:"vehicleType" validate:"omitnil,max=120"`
	VanApproved *bool   `json:"vanApproved"`
	IsActive    *bool   `json:"isActive"`
	HostID      *int64  `json:"hostId" validate:"omitnil,gt=0"`
	Notes       *string `json:"notes"`
}

// ApplyTo mutates the driver in place.
func (u DriverUpdate) ApplyTo(driver *Driver) {
	if driver == nil {
		return
	}
	assignTrimmed(&driver.Name, u.Name)
	assignTrimmed(&driver.Phone, u.Phone)
	assignTrimmed(&driver.Email, u.Email)
	assignTrimmed(&driver.Zone, u.Zone)
	assignTrimmed(&driver.VehicleType, u.VehicleType)
	if u.VanApproved != nil {
		driver.VanApproved = *u.VanApproved
	}
	if u.IsActive != nil {
		driver.IsActive = *u.IsActive
	}
	if u.HostID != nil {
		hostID := *u.HostID
		driver.HostID = &hostID
	}
	if u.Notes != nil {
		driver.Notes = *u.Notes
	}
}

// Columns maps the update onto storage column names.
func (u DriverUpdate) Columns() map[string]any {
	columns := map[string]any{}
	putTrimmed(columns, "name", u.Name)
	putTrimmed(columns, "phone", u.Phone)
	putTrimmed(columns, "email", u.Email)
	putTrimmed(columns, "zone", u.Zone)
	putTrimmed(columns, "vehicle_type", u.VehicleType)
	if u.VanApproved != nil {
		columns["van_approved"] = *u.VanApproved
	}
	if u.IsActive != nil {
		columns["is_active"] = *u.IsActive
	}
	if u.HostID != nil {
		columns["host_id"] = *u.HostID
	}
	if u.Notes != nil {
		columns["notes"] = *u.Notes
	}
	return columns
}

func statusOrDefault(status string) string {
	trimmed := strings.ToLower(strings.TrimSpace(status))
	if trimmed == "" {
		return StatusActive
	}
	return trimmed
}

func assignTrimmed(target *string, value *string) {
	if value != nil {
		*target = strings.TrimSpace(*value)
	}
}

func putTrimmed(columns map[string]any, column string, value *string) {
	if value != nil {
		columns[column] = strings.TrimSpace(*value)
	}
}
