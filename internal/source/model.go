package source

import (
	"time"

	"github.com/visionsuite/camstream/internal/shared"
	"github.com/visionsuite/camstream/internal/stream"
)

// Source is the persisted definition of a camera endpoint. The live
// acquisition state lives in the stream registry; this row is what survives
// a restart and gets re-registered on boot.
type Source struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`

	Host     string `gorm:"not null;index" json:"host"`
	Port     int    `gorm:"default:80" json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`

	Width  int `gorm:"default:640" json:"width"`
	Height int `gorm:"default:480" json:"height"`

	Variants shared.StringSlice `gorm:"type:json" json:"variants"`

	// Per-source overrides for the registry-wide retry policy. Zero means
	// use the service default.
	BackoffCapSeconds int `gorm:"default:0" json:"backoff_cap_seconds"`
	FallbackAfter     int `gorm:"default:0" json:"fallback_after"`

	Enabled bool `gorm:"default:true" json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToDescriptor maps the row to the registry's view of the source.
func (s *Source) ToDescriptor() stream.SourceDescriptor {
	variants := make([]stream.VariantKind, 0, len(s.Variants))
	for _, v := range s.Variants {
		variants = append(variants, stream.VariantKind(v))
	}

	return stream.SourceDescriptor{
		ID:            s.ID,
		Name:          s.Name,
		Host:          s.Host,
		Port:          s.Port,
		Username:      s.Username,
		Password:      s.Password,
		Width:         s.Width,
		Height:        s.Height,
		Variants:      variants,
		BackoffCap:    time.Duration(s.BackoffCapSeconds) * time.Second,
		FallbackAfter: s.FallbackAfter,
	}
}
