package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// VideoStatus is the single source of truth for a video's playability.
type VideoStatus string

const (
	VideoStatusUploaded   VideoStatus = "uploaded"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusError      VideoStatus = "error"
)

// VideoAsset is a catalog entry for one uploaded video. The rendition list and
// manifest key are committed atomically: either the full set is visible
// (status=ready) or none of it is.
type VideoAsset struct {
	ID     string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title  string      `gorm:"type:varchar(255)" json:"title"`
	Status VideoStatus `gorm:"type:varchar(16);not null;index" json:"status"`

	// SourceKey is the storage key of the uploaded file.
	SourceKey string `gorm:"type:varchar(512);not null" json:"source_key"`

	// Populated by the prober; immutable once set.
	SourceDuration float64 `json:"source_duration"`
	SourceWidth    int     `json:"source_width"`
	SourceHeight   int     `json:"source_height"`
	SourceCodec    string  `gorm:"type:varchar(64)" json:"source_codec"`

	// ManifestKey is present iff status=ready.
	ManifestKey string `gorm:"type:varchar(512)" json:"manifest_key,omitempty"`

	// PosterKey is optional; its absence does not block status=ready.
	PosterKey string `gorm:"type:varchar(512)" json:"poster_key,omitempty"`

	ErrorKind    string `gorm:"type:varchar(64)" json:"error_kind,omitempty"`
	ErrorMessage string `gorm:"type:varchar(1024)" json:"error_message,omitempty"`

	Renditions []Rendition `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"renditions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (VideoAsset) TableName() string {
	return "video_assets"
}

// Rendition is one produced resolution/bitrate version of a video.
type Rendition struct {
	ID      uint   `gorm:"primaryKey" json:"-"`
	VideoID string `gorm:"index;type:varchar(64);not null" json:"-"`

	// Position preserves ladder order.
	Position    int        `gorm:"not null" json:"-"`
	Label       string     `gorm:"type:varchar(16);not null" json:"label"`
	Width       int        `gorm:"not null" json:"width"`
	Height      int        `gorm:"not null" json:"height"`
	BitrateKbps int        `gorm:"not null" json:"bitrate_kbps"`
	PlaylistKey string     `gorm:"type:varchar(512);not null" json:"playlist_key"`
	SegmentKeys StringList `gorm:"type:text" json:"segment_keys"`

	CreatedAt time.Time `json:"-"`
}

// TableName returns the table name for GORM.
func (Rendition) TableName() string {
	return "renditions"
}

// StringList stores a string slice as a JSON column so it works on both
// SQLite and Postgres.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}
