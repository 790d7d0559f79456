package accident

import "time"

// Record is one CMPD accident event as persisted by the ingestor.
// EventNo is the identity key; the store never holds two records with the same EventNo.
type Record struct {
	EventNo     string         `json:"EventNo" bson:"EventNo" validate:"required"`
	DateTimeAdd time.Time      `json:"DateTimeAdd" bson:"DateTimeAdd" validate:"required"`
	Division    string         `json:"Division" bson:"Division"`
	Address     string         `json:"Address" bson:"Address"`
	EventType   string         `json:"EventType" bson:"EventType"`
	EventDesc   string         `json:"EventDesc" bson:"EventDesc"`
	Latitude    float64        `json:"Latitude" bson:"Latitude" validate:"latitude"`
	Longitude   float64        `json:"Longitude" bson:"Longitude" validate:"longitude"`
	XCoord      float64        `json:"XCoord" bson:"XCoord"`
	YCoord      float64        `json:"YCoord" bson:"YCoord"`
	Weather     *Weather       `json:"weatherInfo,omitempty" bson:"weatherInfo,omitempty"`
	Raw         map[string]any `json:"raw,omitempty" bson:"raw,omitempty"`
}

// Weather is the snapshot attached to a record during ingestion.
// Rain3h and Visibility are absent from the upstream response on clear days.
type Weather struct {
	Temperature float64  `json:"temp" bson:"temp"`
	Rain3h      *float64 `json:"rain_3h,omitempty" bson:"rain_3h,omitempty"`
	WindSpeed   float64  `json:"wind_speed" bson:"wind_speed"`
	Visibility  *float64 `json:"visibility,omitempty" bson:"visibility,omitempty"`
	Sunrise     int64    `json:"sunrise" bson:"sunrise"`
	Sunset      int64    `json:"sunset" bson:"sunset"`
	Category    string   `json:"main" bson:"main"`
}

// SortOrder orders ReadAll results by DateTimeAdd.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// IDs returns the event numbers of records in order.
func IDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.EventNo)
	}
	return ids
}
