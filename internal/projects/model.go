// Package projects models volunteer projects and their assignment workflow.
package projects

import (
	"strings"
	"time"
)

// Status values of a project.
const (
	StatusAvailable  = "available"
	StatusInProgress = "in_progress"
	StatusPlanning   = "planning"
	StatusCompleted  = "completed"
)

// Priority values of a project.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	defaultColor    = "blue"
	defaultCategory = "general"
	// DefaultClaimant names the assignee of a claim that does not name one.
	DefaultClaimant = "You"
)

// Project is a unit of volunteer work that can be claimed by an assignee.
type Project struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title              string    `gorm:"column:title;size:512;not null" json:"title"`
	Description        string    `gorm:"column:description;type:text" json:"description"`
	Status             string    `gorm:"column:status;size:32;not null;default:'available';index" json:"status"`
	Priority           string    `gorm:"column:priority;size:16;not null;default:'medium'" json:"priority"`
	Category           string    `gorm:"column:category;size:64;not null;default:'general'" json:"category"`
	Color              string    `gorm:"column:color;size:32;not null;default:'blue'" json:"color"`
	AssigneeName       string    `gorm:"column:assignee_name;size:320" json:"assigneeName"`
	DueDate            string    `gorm:"column:due_date;size:10" json:"dueDate,omitempty"`
	StartDate          string    `gorm:"column:start_date;size:10" json:"startDate,omitempty"`
	CompletionDate     string    `gorm:"column:completion_date;size:10" json:"completionDate,omitempty"`
	ProgressPercentage int       `gorm:"column:progress_percentage;not null;default:0" json:"progressPercentage"`
	EstimatedHours     *int      `gorm:"column:estimated_hours" json:"estimatedHours"`
	ActualHours        *int      `gorm:"column:actual_hours" json:"actualHours"`
	Notes              string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Project) TableName() string {
	return "projects"
}

// ProjectInput is the payload for creating a project.
type ProjectInput struct {
	Title              string `json:"title" validate:"required,max=512"`
	Description        string `json:"description"`
	Status             string `json:"status" validate:"omitempty,oneof=available in_progress planning completed"`
	Priority           string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category           string `json:"category" validate:"max=64"`
	Color              string `json:"color" validate:"max=32"`
	AssigneeName       string `json:"assigneeName" validate:"max=320"`
	DueDate            string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	StartDate          string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	ProgressPercentage int    `json:"progressPercentage" validate:"min=0,max=100"`
	EstimatedHours     *int   `json:"estimatedHours" validate:"omitnil,min=0"`
	Notes              string `json:"notes"`
}

// Record converts the input into an unsaved project. A project created with
// an assignee and no explicit status starts in progress.
func (in ProjectInput) Record() Project {
	assignee := strings.TrimSpace(in.AssigneeName)
	status := lowerOr(in.Status, StatusAvailable)
	if strings.TrimSpace(in.Status) == "" && assignee != "" {
		status = StatusInProgress
	}
	return Project{
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		Status:             status,
		Priority:           lowerOr(in.Priority, PriorityMedium),
		Category:           lowerOr(in.Category, defaultCategory),
		Color:              lowerOr(in.Color, defaultColor),
		AssigneeName:       assignee,
		DueDate:            strings.TrimSpace(in.DueDate),
		StartDate:          strings.TrimSpace(in.StartDate),
		ProgressPercentage: in.ProgressPercentage,
		EstimatedHours:     in.EstimatedHours,
		Notes:              in.Notes,
	}
}

// ProjectUpdate is a partial project update.
type ProjectUpdate struct {
	Title              *string `json:"title" validate:"omitnil,min=1,max=512"`
	Description        *string `json:"description"`
	Status             *string `json:"status" validate:"omitnil,oneof=available in_progress planning completed"`
	Priority           *string `json:"priority" validate:"omitnil,oneof=low medium high urgent"`
	Category           *string `json:"category" validate:"omitnil,max=64"`
	Color              *string `json:"color" validate:"omitnil,max=32"`
	AssigneeName       *string `json:"assigneeName" validate:"omitnil,max=320"`
	DueDate            *string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	StartDate          *string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	CompletionDate     *string `json:"completionDate" validate:"omitempty,datetime=2006-01-02"`
	ProgressPercentage *int    `json:"progressPercentage" validate:"omitnil,min=0,max=100"`
	EstimatedHours     *int    `json:"estimatedHours" validate:"omitnil,min=0"`
	ActualHours        *int    `json:"actualHours" validate:"omitnil,min=0"`
	Notes              *string `json:"notes"`
}

// Claim is the update applied when someone takes a project on.
func Claim(assignee string) ProjectUpdate {
	name := strings.TrimSpace(assignee)
	if name == "" {
		name = DefaultClaimant
	}
	status := StatusInProgress
	return ProjectUpdate{Status: &status, AssigneeName: &name}
}

// Resolve derives the status transition implied by an assignee change.
// Assigning an available project moves it in progress; clearing the assignee
// of an in-progress project makes it available again. The derived status
// overrides any status in the update.
func (u ProjectUpdate) Resolve(current Project) ProjectUpdate {
	if u.AssigneeName == nil {
		return u
	}
	var status string
	switch {
	case strings.TrimSpace(*u.AssigneeName) != "" && current.Status == StatusAvailable:
		status = StatusInProgress
	case *u.AssigneeName == "" && current.Status == StatusInProgress:
		status = StatusAvailable
	default:
		return u
	}
	u.Status = &status
	return u
}

// ApplyTo mutates the project in place.
func (u ProjectUpdate) ApplyTo(project *Project) {
	if project == nil {
		return
	}
	for column, value := range u.Columns() {
		switch column {
		case "title":
			project.Title = value.(string)
		case "description":
			project.Description = value.(string)
		case "status":
			project.Status = value.(string)
		case "priority":
			project.Priority = value.(string)
		case "category":
			project.Category = value.(string)
		case "color":
			project.Color = value.(string)
		case "assignee_name":
			project.AssigneeName = value.(string)
		case "due_date":
			project.DueDate = value.(string)
		case "start_date":
			project.StartDate = value.(string)
		case "completion_date":
			project.CompletionDate = value.(string)
		case "progress_percentage":
			project.ProgressPercentage = value.(int)
		case "estimated_hours":
			hours := value.(int)
			project.EstimatedHours = &hours
		case "actual_hours":
			hours := value.(int)
			project.ActualHours = &hours
		case "notes":
			project.Notes = value.(string)
		}
	}
}

// Columns maps the update onto storage column names.
func (u ProjectUpdate) Columns() map[string]any {
	columns := map[string]any{}
	putTrimmed(columns, "title", u.Title)
	putRaw(columns, "description", u.Description)
	putLowered(columns, "status", u.Status)
	putLowered(columns, "priority", u.Priority)
	putLowered(columns, "category", u.Category)
	putLowered(columns, "color", u.Color)
	putTrimmed(columns, "assignee_name", u.AssigneeName)
	putTrimmed(columns, "due_date", u.DueDate)
	putTrimmed(columns, "start_date", u.StartDate)
	putTrimmed(columns, "completion_date", u.CompletionDate)
	putRaw(columns, "progress_percentage", u.ProgressPercentage)
	putRaw(columns, "estimated_hours", u.EstimatedHours)
	putRaw(columns, "actual_hours", u.ActualHours)
	putRaw(columns, "notes", u.Notes)
	return columns
}

func lowerOr(value, fallback string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func putRaw[T any](columns map[string]any, column string, value *T) {
	if value != nil {
		columns[column] = *value
	}
}

func putTrimmed(columns map[string]any, column string, value *string) {
	if value != nil {
		columns[column] = strings.TrimSpace(*value)
	}
}

func putLowered(columns map[string]any, column string, value *string) {
	if value != nil {
		columns[column] = strings.ToLower(strings.TrimSpace(*value))
	}
}
