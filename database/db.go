package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"time"

	"x-sub/config"
	"x-sub/database/model"
	"x-sub/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

func GetDBProvider() *gorm.DB {
	return GetDB()
}

// sqlite 写事务直接取 RESERVED 锁，并发写者在 busy_timeout 内排队而不是立即 SQLITE_BUSY
const sqliteParams = "?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL&_foreign_keys=on"

func initModels() error {
	for _, m := range model.All() {
		if err := db.AutoMigrate(m); err != nil {
			logger.Errorf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

func gormConfig() *gorm.Config {
	var gormLogger gormlogger.Interface
	if config.IsDebug() {
		gormLogger = gormlogger.Default
	} else {
		gormLogger = gormlogger.Discard
	}
	return &gorm.Config{
		Logger: gormLogger,
	}
}

// Open 按类型打开数据库连接，不修改全局状态
func Open(dbType, dsn string) (*gorm.DB, error) {
	switch dbType {
	case "", "sqlite":
		dir := path.Dir(dsn)
		if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
			return nil, err
		}
		gdb, err := gorm.Open(sqlite.Open(dsn+sqliteParams), gormConfig())
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(8)
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		gdb.Exec("PRAGMA synchronous=NORMAL;")
		return gdb, nil
	case "postgres", "postgresql":
		if dsn == "" {
			return nil, errors.New("db.dsn is required for postgres")
		}
		gdb, err := gorm.Open(postgres.Open(dsn), gormConfig())
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// 数据库连接池配置
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		return gdb, nil
	default:
		return nil, fmt.Errorf("unsupported db type: %s", dbType)
	}
}

// InitDB 打开数据库并执行表结构迁移
func InitDB(dbType, dsn string) error {
	gdb, err := Open(dbType, dsn)
	if err != nil {
		return err
	}
	db = gdb
	return initModels()
}

// InitDBFromConfig 使用静态配置初始化数据库
func InitDBFromConfig() error {
	dbType := config.GetDBType()
	if dbType == "sqlite" {
		return InitDB(dbType, config.GetDBPath())
	}
	return InitDB(dbType, config.GetDBDSN())
}

// SetDB 替换全局连接，测试中注入 sqlmock 使用
func SetDB(gdb *gorm.DB) {
	db = gdb
}

func CloseDB() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func IsSQLiteDB(file io.ReaderAt) (bool, error) {
	signature := []byte("SQLite format 3\x00")
	buf := make([]byte, len(signature))
	_, err := file.ReadAt(buf, 0)
	if err != nil {
		return false, err
	}
	return bytes.Equal(buf, signature), nil
}

// Checkpoint 将 WAL 合并回主库，仅 sqlite 有效
func Checkpoint() error {
	if db == nil || db.Dialector.Name() != "sqlite" {
		return nil
	}
	return db.Exec("PRAGMA wal_checkpoint;").Error
}

// WithTx 执行带事务的操作，自动处理 Commit/Rollback
// 如果 fn 返回 nil，事务将被提交；如果返回 error 或 ctx 被取消，事务将被回滚
func WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return WithTxOn(ctx, db, fn)
}

// WithTxOn 在指定连接上执行事务
func WithTxOn(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// WithTxResult 执行带事务的操作并返回结果，自动处理 Commit/Rollback
func WithTxResult[T any](ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var zero T
	tx := conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return zero, tx.Error
	}

	result, err := fn(tx)
	if err != nil {
		tx.Rollback()
		return zero, err
	}
	if err := tx.Commit().Error; err != nil {
		return zero, err
	}
	return result, nil
}
