package collections

import (
	"strings"
	"time"
)

// ReservedHostName marks legacy bulk-imported records that predate per-location tracking.
const ReservedHostName = "OG Sandwich Project"

// Collection is one submission of sandwiches gathered at a location on a date.
type Collection struct {
	ID                   int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CollectionDate       string           `gorm:"column:collection_date;size:10;not null;index" json:"collectionDate"`
	HostName             string           `gorm:"column:host_name;size:320;not null;index" json:"hostName"`
	IndividualSandwiches int              `gorm:"column:individual_sandwiches;not null;default:0" json:"individualSandwiches"`
	GroupCollections     GroupCollections `gorm:"column:group_collections" json:"groupCollections"`
	SubmittedAt          time.Time        `gorm:"column:submitted_at;autoCreateTime" json:"submittedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Collection) TableName() string {
	return "sandwich_collections"
}

// GroupTotal is the normalized group contribution of the record.
func (c Collection) GroupTotal() int {
	return c.GroupCollections.Total()
}

// EffectiveTotal is individual plus group sandwiches. It is derived, never stored.
func (c Collection) EffectiveTotal() int {
	individual := c.IndividualSandwiches
	if individual < 0 {
		individual = 0
	}
	return individual + c.GroupTotal()
}

// IsReservedHost reports whether the record belongs to the legacy bulk import.
func (c Collection) IsReservedHost() bool {
	return c.HostName == ReservedHostName
}

// CollectionInput is the payload accepted when submitting a new collection.
type CollectionInput struct {
	CollectionDate       string           `json:"collectionDate" validate:"required,datetime=2006-01-02"`
	HostName             string           `json:"hostName" validate:"required,max=320"`
	IndividualSandwiches int              `json:"individualSandwiches" validate:"gte=0"`
	GroupCollections     GroupCollections `json:"groupCollections" validate:"-"`
}

// Record converts the input into an unsaved collection record.
func (in CollectionInput) Record() Collection {
	return Collection{
		CollectionDate:       strings.TrimSpace(in.CollectionDate),
		HostName:             strings.TrimSpace(in.HostName),
		IndividualSandwiches: in.IndividualSandwiches,
		GroupCollections:     in.GroupCollections,
	}
}

// CollectionUpdate is a partial update; nil fields are left untouched.
type CollectionUpdate struct {
	CollectionDate       *string           `json:"collectionDate" validate:"omitnil,datetime=2006-01-02"`
	HostName             *string           `json:"hostName" validate:"omitnil,min=1,max=320"`
	IndividualSandwiches *int              `json:"individualSandwiches" validate:"omitnil,gte=0"`
	GroupCollections     *GroupCollections `json:"groupCollections" validate:"-"`
}

// Empty reports whether the update changes nothing.
func (u CollectionUpdate) Empty() bool {
	return u.CollectionDate == nil && u.HostName == nil && u.IndividualSandwiches == nil && u.GroupCollections == nil
}

// ApplyTo mutates the record in place.
func (u CollectionUpdate) ApplyTo(record *Collection) {
	if record == nil {
		return
	}
	if u.CollectionDate != nil {
		record.CollectionDate = strings.TrimSpace(*u.CollectionDate)
	}
	if u.HostName != nil {
		record.HostName = strings.TrimSpace(*u.HostName)
	}
	if u.IndividualSandwiches != nil {
		record.IndividualSandwiches = *u.IndividualSandwiches
	}
	if u.GroupCollections != nil {
		record.GroupCollections = *u.GroupCollections
	}
}

// Columns maps the update onto storage column names.
func (u CollectionUpdate) Columns() map[string]any {
	columns := map[string]any{}
	if u.CollectionDate != nil {
		columns["collection_date"] = strings.TrimSpace(*u.CollectionDate)
	}
	if u.HostName != nil {
		columns["host_name"] = strings.TrimSpace(*u.HostName)
	}
	if u.IndividualSandwiches != nil {
		columns["individual_sandwiches"] = *u.IndividualSandwiches
	}
	if u.GroupCollections != nil {
		columns["group_collections"] = *u.GroupCollections
	}
	return columns
}

// Stats summarizes the whole collection log.
type Stats struct {
	TotalEntries    int `json:"totalEntries"`
	TotalSandwiches int `json:"totalSandwiches"`
}

// Summarize computes Stats over the provided records.
func Summarize(records []Collection) Stats {
	stats := Stats{TotalEntries: len(records)}
	for _, record := range records {
		stats.TotalSandwiches += record.EffectiveTotal()
	}
	return stats
}
