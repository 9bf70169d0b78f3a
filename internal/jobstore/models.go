package jobstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amber-sync/amber-sub000/internal/transfer"
)

// JSONColumn marshals a value of type T to JSON for storage and back on
// read, the way the teacher's EncryptedString does for encrypted columns —
// except this one makes no attempt at secrecy.
type JSONColumn[T any] struct {
	Value T
}

// Value implements driver.Valuer.
func (c JSONColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.Value)
	if err != nil {
		return nil, fmt.Errorf("jobstore: marshal %T: %w", c.Value, err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *JSONColumn[T]) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jobstore: Scan: unsupported type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &c.Value)
}

// JobSchedule is a job's optional recurring-run configuration.
type JobSchedule struct {
	Enabled    bool   `json:"enabled"`
	Cron       string `json:"cron,omitempty"`
	RunOnMount bool   `json:"runOnMount"`
}

// Job is the persisted row for one configured backup job. It is the
// GORM-managed sibling of the hand-rolled index catalog: config in, config
// out, with no invariants of its own beyond uniqueness of ID and
// destination path.
type Job struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"not null"`
	SourcePath string `gorm:"column:source_path;not null"`
	DestPath   string `gorm:"column:dest_path;not null;uniqueIndex"`
	Mode       string `gorm:"not null;default:time_machine"`

	RsyncConfig JSONColumn[transfer.RsyncConfig]  `gorm:"column:rsync_config;type:text;not null"`
	SSHConfig   JSONColumn[*transfer.SSHConfig]   `gorm:"column:ssh_config;type:text"`
	CloudConfig JSONColumn[*transfer.CloudConfig] `gorm:"column:cloud_config;type:text"`
	Schedule    JSONColumn[JobSchedule]           `gorm:"column:schedule;type:text;not null"`

	MachineID   string `gorm:"column:machine_id;not null;default:''"`
	MachineName string `gorm:"column:machine_name;not null;default:''"`

	LastRunAt  *time.Time `gorm:"column:last_run_at"`
	LastStatus string     `gorm:"column:last_status;not null;default:''"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName pins the GORM table name rather than relying on pluralization,
// matching the explicit CREATE TABLE in the embedded migration.
func (Job) TableName() string {
	return "jobs"
}
