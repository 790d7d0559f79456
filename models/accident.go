package models

import (
	"time"

	"gorm.io/datatypes"
)

// Accident is the read model over an ingestor table. The table name depends
// on the configured collection, so queries select it with db.Table.
type Accident struct {
	EventNo     string         `gorm:"column:event_no;primaryKey" json:"event_no"`
	DateTimeAdd time.Time      `gorm:"column:datetime_add" json:"datetime_add"`
	Division    string         `gorm:"column:division" json:"division"`
	Address     string         `gorm:"column:address" json:"address"`
	EventType   string         `gorm:"column:event_type" json:"event_type"`
	EventDesc   string         `gorm:"column:event_desc" json:"event_desc"`
	Latitude    float64        `gorm:"column:latitude" json:"latitude"`
	Longitude   float64        `gorm:"column:longitude" json:"longitude"`
	XCoord      float64        `gorm:"column:x_coord" json:"x_coord"`
	YCoord      float64        `gorm:"column:y_coord" json:"y_coord"`
	Weather     datatypes.JSON `gorm:"column:weather" json:"weather,omitempty"`
	IngestedAt  time.Time      `gorm:"column:ingested_at" json:"ingested_at"`
}

func (Accident) TableName() string { return "accidents" }
