package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is the tenant projection this engine scopes everything by. Stores are
// owned by the upstream platform; only the fields reconciliation needs live here.
type Store struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
