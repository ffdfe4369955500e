package database

import (
	"fmt"
	"path/filepath"
	"testing"

	"x-sub/database/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CreateTestDB 在测试临时目录中创建独立的 sqlite 数据库并完成迁移。
// 使用文件而非 :memory:，连接池中的多个连接才能看到同一份数据
func CreateTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	gdb, err := gorm.Open(sqlite.Open(dbPath+sqliteParams), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 测试时静默模式
	})
	if err != nil {
		t.Fatalf("创建测试数据库失败: %v", err)
	}
	if err := InitTestModels(gdb); err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(func() {
		_ = CleanupTestDB(gdb)
	})
	return gdb
}

// InitTestModels 初始化测试模型
func InitTestModels(gdb *gorm.DB) error {
	for _, m := range model.All() {
		if err := gdb.AutoMigrate(m); err != nil {
			return fmt.Errorf("自动迁移模型失败: %w", err)
		}
	}
	return nil
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(gdb *gorm.DB) error {
	if gdb != nil {
		sqlDB, err := gdb.DB()
		if err != nil {
			return fmt.Errorf("获取数据库实例失败: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("关闭数据库连接失败: %w", err)
		}
	}
	return nil
}
