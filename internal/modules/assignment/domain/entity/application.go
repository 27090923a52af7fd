package entity

import (
	"time"
)

// ApplicationCategory is the closed set of signup categories.
type ApplicationCategory string

const (
	CategoryDriver  ApplicationCategory = "driver"
	CategoryCourier ApplicationCategory = "courier"
	CategoryBoth    ApplicationCategory = "both"
	CategoryCargo   ApplicationCategory = "cargo"
)

func (c ApplicationCategory) Valid() bool {
	switch c {
	case CategoryDriver, CategoryCourier, CategoryBoth, CategoryCargo:
		return true
	}
	return false
}

// Application is the signup form payload behind an application work item.
type Application struct {
	Id             int64               `gorm:"column:id;primaryKey"`
	Uuid           string              `gorm:"column:uuid;uniqueIndex;type:char(36);not null"`
	WorkItemUuid   string              `gorm:"column:work_item_uuid;uniqueIndex;type:char(36);not null"`
	FullName       string              `gorm:"column:full_name;type:varchar(255);not null"`
	Phone          string              `gorm:"column:phone;index;type:varchar(20);not null"`
	Age            int                 `gorm:"column:age"`
	City           string              `gorm:"column:city;type:varchar(100);not null"`
	Category       ApplicationCategory `gorm:"column:category;type:varchar(20);not null"`
	Experience     string              `gorm:"column:experience;type:varchar(50)"`
	Transport      string              `gorm:"column:transport;type:varchar(50);comment:courier transport kind"`
	LoadCapacity   string              `gorm:"column:load_capacity;type:varchar(50)"`
	AdditionalInfo string              `gorm:"column:additional_info;type:text"`
	Notes          string              `gorm:"column:notes;type:text;comment:operator notes"`
	CreatedAt      time.Time           `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time           `gorm:"column:updated_at"`
}

func (Application) TableName() string {
	return "applications"
}
