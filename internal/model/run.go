package model

import "time"

// Run 一次运行的历史记录
type Run struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(32)"`
	Host         string    `json:"host" gorm:"type:varchar(255);index"`
	Username     string    `json:"username" gorm:"type:varchar(64)"`
	Status       string    `json:"status" gorm:"type:varchar(16);not null"`
	ErrorMsg     string    `json:"error_msg" gorm:"type:text"`
	Sessions     int       `json:"sessions"`
	CommandCount int       `json:"command_count"`
	FailedCount  int       `json:"failed_count"`
	RuleCount    int       `json:"rule_count"`
	StartTime    time.Time `json:"start_time" gorm:"index"`
	EndTime      time.Time `json:"end_time"`
	Duration     int64     `json:"duration"` // 毫秒
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (Run) TableName() string {
	return "runs"
}

// RunRule 运行结果中的规则（按报表顺序）
type RunRule struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID    string `json:"run_id" gorm:"type:varchar(32);not null;index"`
	Position int    `json:"position" gorm:"not null"`
	Name     string `json:"name" gorm:"type:varchar(255);not null;index"`
}

// TableName 表名
func (RunRule) TableName() string {
	return "run_rules"
}

// RunFailure 被跳过的追问命令
type RunFailure struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID    string `json:"run_id" gorm:"type:varchar(32);not null;index"`
	Command  string `json:"command" gorm:"type:text;not null"`
	ErrorMsg string `json:"error_msg" gorm:"type:text"`
}

// TableName 表名
func (RunFailure) TableName() string {
	return "run_failures"
}
