package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/sshcollectorpro/activerules/internal/model"
	"github.com/sshcollectorpro/activerules/internal/service"
	"github.com/sshcollectorpro/activerules/pkg/logger"
)

// Store 运行历史（SQLite）
type Store struct {
	db *gorm.DB
}

// Open 打开或创建历史库
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger.New(
			logger.GetLogger(),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		SkipDefaultTransaction: true,
	}

	// modernc.org/sqlite 驱动，纯 Go 实现
	dsn := path + "?_pragma=busy_timeout(15000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 单连接，确保 PRAGMA 生效
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.Run{}, &model.RunRule{}, &model.RunFailure{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Save 保存一次运行的汇总
func (s *Store) Save(ctx context.Context, summary *service.RunSummary) error {
	run := model.Run{
		ID:           summary.RunID,
		Host:         summary.Host,
		Username:     summary.Username,
		Status:       string(summary.Status),
		ErrorMsg:     summary.Error,
		Sessions:     summary.Sessions,
		CommandCount: len(summary.Commands),
		FailedCount:  len(summary.FailedCommands),
		RuleCount:    len(summary.Rules),
		StartTime:    summary.StartedAt,
		EndTime:      summary.FinishedAt,
		Duration:     summary.Duration().Milliseconds(),
	}
	rules := make([]model.RunRule, 0, len(summary.Rules))
	for i, name := range summary.Rules {
		rules = append(rules, model.RunRule{RunID: summary.RunID, Position: i, Name: name})
	}
	failures := make([]model.RunFailure, 0, len(summary.FailedCommands))
	for _, f := range summary.FailedCommands {
		failures = append(failures, model.RunFailure{RunID: summary.RunID, Command: f.Command, ErrorMsg: f.Error})
	}

	return s.withRetry(ctx, 3, func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(rules) > 0 {
			if err := tx.Create(&rules).Error; err != nil {
				return err
			}
		}
		if len(failures) > 0 {
			if err := tx.Create(&failures).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LastSuccessful 指定主机在 excludeRunID 之前最近一次成功的运行；没有时返回 nil
func (s *Store) LastSuccessful(ctx context.Context, host, excludeRunID string) (*model.Run, error) {
	var runs []model.Run
	err := s.db.WithContext(ctx).
		Where("host = ? AND status = ? AND id <> ?", host, string(service.RunStatusSuccess), excludeRunID).
		Order("start_time DESC").Limit(1).Find(&runs).Error
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// Rules 指定运行的规则列表（按报表顺序）
func (s *Store) Rules(ctx context.Context, runID string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&model.RunRule{}).
		Where("run_id = ?", runID).Order("position").Pluck("name", &names).Error
	return names, err
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withRetry 事务遇到锁冲突时退避重试
func (s *Store) withRetry(ctx context.Context, attempts int, fn func(*gorm.DB) error) error {
	sleep := 50 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !IsBusyError(err) {
			return err
		}
		time.Sleep(sleep)
		sleep *= 2
	}
	return err
}

// IsBusyError 判断是否为 SQLite 并发锁相关错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "cannot start a transaction within a transaction")
}
