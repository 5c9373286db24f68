package models

import (
	"time"
)

// Task schedules
const (
	TaskScheduleDaily  = "DAILY"
	TaskScheduleWeekly = "WEEKLY"
)

// Task types map user behaviour to progress.
const (
	TaskTypeSignin     = "SIGNIN"
	TaskTypeBrowse     = "BROWSE_PROJECT"
	TaskTypeCheer      = "CHEER"
	TaskTypeVote       = "VOTE"
	TaskTypeComment    = "COMMENT"
	TaskTypePrediction = "PREDICTION"
	TaskTypeGacha      = "GACHA"
	TaskTypeSlot       = "SLOT"
	TaskTypeScratch    = "SCRATCH"
	TaskTypeExchange   = "EXCHANGE"
	TaskTypeChainBonus = "CHAIN_BONUS"
)

var taskTypes = map[string]bool{
	TaskTypeSignin:     true,
	TaskTypeBrowse:     true,
	TaskTypeCheer:      true,
	TaskTypeVote:       true,
	TaskTypeComment:    true,
	TaskTypePrediction: true,
	TaskTypeGacha:      true,
	TaskTypeSlot:       true,
	TaskTypeScratch:    true,
	TaskTypeExchange:   true,
	TaskTypeChainBonus: true,
}

func IsTaskType(t string) bool {
	return taskTypes[t]
}

type TaskDefinition struct {
	ID                    uint   `gorm:"primaryKey"`
	TaskKey               string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name                  string `gorm:"type:varchar(100);not null"`
	Description           string `gorm:"type:varchar(500)"`
	Schedule              string `gorm:"type:varchar(10);not null;index:idx_task_type_schedule"`
	TaskType              string `gorm:"type:varchar(32);not null;index:idx_task_type_schedule"`
	TargetValue           int    `gorm:"default:1;not null"`
	RewardPoints          int64  `gorm:"default:0;not null"`
	IsActive              bool   `gorm:"default:true;not null"`
	AutoClaim             bool   `gorm:"default:false;not null"`
	SortOrder             int    `gorm:"default:0;not null"`
	StartsAt              *time.Time
	EndsAt                *time.Time
	ChainGroupKey         string    `gorm:"type:varchar(50);index"`
	ChainRequiresGroupKey string    `gorm:"type:varchar(50)"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
}

// ActiveAt reports whether the definition accepts progress at t.
func (d *TaskDefinition) ActiveAt(t time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.StartsAt != nil && t.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && !t.Before(*d.EndsAt) {
		return false
	}
	return true
}

func (TaskDefinition) TableName() string {
	return "task_definitions"
}

// TaskProgress is one account's progress on one task in one period.
// TargetValue and RewardPoints are copied from the definition when the row
// is created, so later edits do not change an open period.
type TaskProgress struct {
	ID            uint      `gorm:"primaryKey"`
	AccountID     uint      `gorm:"not null;uniqueIndex:idx_task_progress_period;index:idx_progress_account_period"`
	TaskID        uint      `gorm:"not null;uniqueIndex:idx_task_progress_period"`
	PeriodStart   time.Time `gorm:"type:date;not null;uniqueIndex:idx_task_progress_period;index:idx_progress_account_period"`
	PeriodEnd     time.Time `gorm:"type:date;not null"`
	ProgressValue int       `gorm:"default:0;not null"`
	TargetValue   int       `gorm:"default:1;not null"`
	RewardPoints  int64     `gorm:"default:0;not null"`
	CompletedAt   *time.Time
	ClaimedAt     *time.Time
	LastEventAt   *time.Time
}

func (p *TaskProgress) Completed() bool {
	return p.CompletedAt != nil
}

func (TaskProgress) TableName() string {
	return "task_progress"
}

// TaskEvent deduplicates business events: one event key counts once per
// account, schedule and period.
type TaskEvent struct {
	ID          uint      `gorm:"primaryKey"`
	AccountID   uint      `gorm:"not null;uniqueIndex:idx_task_event_period"`
	Schedule    string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_task_event_period"`
	PeriodStart time.Time `gorm:"type:date;not null;uniqueIndex:idx_task_event_period"`
	EventKey    string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_task_event_period"`
	TaskType    string    `gorm:"type:varchar(32);not null;index"`
	RefType     string    `gorm:"type:varchar(50)"`
	RefID       uint      `gorm:"default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (TaskEvent) TableName() string {
	return "task_events"
}

type TaskClaim struct {
	ID           uint      `gorm:"primaryKey"`
	AccountID    uint      `gorm:"not null;uniqueIndex:idx_task_claim_period"`
	TaskID       uint      `gorm:"not null;uniqueIndex:idx_task_claim_period"`
	PeriodStart  time.Time `gorm:"type:date;not null;uniqueIndex:idx_task_claim_period"`
	RewardPoints int64     `gorm:"default:0;not null"`
	RequestID    string    `gorm:"type:varchar(64);not null"`
	ClaimedAt    time.Time `gorm:"autoCreateTime"`
}

func (TaskClaim) TableName() string {
	return "task_claims"
}

// TaskStreak counts consecutive days on which the account completed at
// least one daily task.
type TaskStreak struct {
	AccountID uint       `gorm:"primaryKey;autoIncrement:false"`
	Current   int        `gorm:"default:0;not null"`
	Longest   int        `gorm:"default:0;not null"`
	LastDate  *time.Time `gorm:"type:date"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
}

func (TaskStreak) TableName() string {
	return "task_streaks"
}
