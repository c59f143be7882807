//go:build integration

package db

import (
	"fmt"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/zulandar/boardcore/internal/config"
	"github.com/zulandar/boardcore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// startDoltServer initializes a Dolt repo in a temp directory and starts a
// MySQL-compatible dolt sql-server on a free port. The server is stopped
// when the test completes.
func startDoltServer(t *testing.T) int {
	t.Helper()

	dir := t.TempDir()
	for _, kv := range [][2]string{
		{"user.name", "Test Runner"},
		{"user.email", "test@boardcore.dev"},
	} {
		cfg := exec.Command("dolt", "config", "--global", "--add", kv[0], kv[1])
		cfg.Dir = dir
		cfg.CombinedOutput() // ignore errors if already set
	}

	init := exec.Command("dolt", "init")
	init.Dir = dir
	if out, err := init.CombinedOutput(); err != nil {
		t.Fatalf("dolt init: %s\n%s", err, out)
	}

	port := freePort(t)
	cmd := exec.Command("dolt", "sql-server", "--port", fmt.Sprintf("%d", port), "--host", "127.0.0.1")
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		t.Fatalf("dolt sql-server start: %v", err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	waitForServer(t, port)
	return port
}

// freePort finds an available TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// waitForServer polls until the server accepts TCP connections.
func waitForServer(t *testing.T, port int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("dolt sql-server not ready on port %d after 10s", port)
}

func migratedDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: startDoltServer(t), User: "root", Name: name}
	if err := CreateDatabase(cfg); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func TestIntegration_AutoMigrate(t *testing.T) {
	db := migratedDB(t, "boardcore_migrate")

	var tables []string
	if err := db.Raw("SHOW TABLES").Scan(&tables).Error; err != nil {
		t.Fatalf("SHOW TABLES: %v", err)
	}
	tableSet := make(map[string]bool)
	for _, tbl := range tables {
		tableSet[tbl] = true
	}
	for _, expected := range []string{"boards", "board_members", "lists", "labels", "cards", "card_deps", "card_labels", "activities", "graph_revisions"} {
		if !tableSet[expected] {
			t.Errorf("expected table %q not found; got tables: %v", expected, tables)
		}
	}
}

func TestIntegration_Idempotent(t *testing.T) {
	db := migratedDB(t, "boardcore_idem")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate (2nd): %v", err)
	}
	var n int64
	if err := db.Model(&models.GraphRevision{}).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("graph revision rows = %d, want 1", n)
	}
}

// Row locks taken with FOR UPDATE must block a second writer until the
// first commits; with a short lock wait the second writer sees a timeout
// classified as such.
func TestIntegration_RowLockTimeout(t *testing.T) {
	db := migratedDB(t, "boardcore_locks")
	if err := db.Create(&models.Board{ID: "b1", Name: "Ops"}).Error; err != nil {
		t.Fatal(err)
	}

	holder := db.Begin()
	defer holder.Rollback()
	var b models.Board
	if err := holder.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&b, "id = ?", "b1").Error; err != nil {
		t.Fatalf("lock row: %v", err)
	}

	waiter := db.Begin()
	defer waiter.Rollback()
	if err := waiter.Exec("SET SESSION innodb_lock_wait_timeout = 1").Error; err != nil {
		t.Skipf("server does not support lock wait timeout: %v", err)
	}
	err := waiter.Model(&models.Board{}).Where("id = ?", "b1").Update("name", "Ops2").Error
	if err == nil {
		t.Skip("server does not enforce row locks")
	}
	if !IsTimeout(err) && !IsRetryable(err) {
		t.Errorf("lock conflict %v neither timeout nor retryable", err)
	}
}
