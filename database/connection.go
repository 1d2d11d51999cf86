package database

import (
    "context"
    "database/sql"
    "fmt"
    "log"
    "time"
)

type DatabaseConfig struct {
    Host     string
    User     string
    Password string
    DBName   string
}

type Connection struct {
    db *sql.DB
}

func NewConnection(config DatabaseConfig) (*Connection, error) {
    dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
        config.User, config.Password, config.Host, config.DBName)

    db, err := sql.Open("mysql", dsn)
    if err != nil {
        return nil, fmt.Errorf("failed to connect to database: %v", err)
    }

    db.SetMaxOpenConns(25)
    db.SetMaxIdleConns(25)
    db.SetConnMaxLifetime(5 * time.Minute)
    db.SetConnMaxIdleTime(5 * time.Minute)

    conn := &Connection{db: db}

    if err := conn.ensureConnection(); err != nil {
        db.Close()
        return nil, err
    }

    return conn, nil
}

// LockSession takes a short-lived poll lock for one charge session. The redis
// queue does not guarantee duplicate-free dispatch after a worker crash, so
// pollers serialize here; stale locks are reclaimed after 5 minutes.
func (c *Connection) LockSession(sessionID string) (bool, error) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    result, err := c.db.ExecContext(ctx, `
        INSERT INTO session_locks (session_id, locked_at)
        VALUES (?, NOW())
        ON DUPLICATE KEY UPDATE
        locked_at = IF(locked_at < NOW() - INTERVAL 5 MINUTE, NOW(), locked_at)
    `, sessionID)

    if err != nil {
        return false, fmt.Errorf("error acquiring session lock: %v", err)
    }

    rows, err := result.RowsAffected()
    if err != nil {
        return false, err
    }

    return rows > 0, nil
}

func (c *Connection) ReleaseLock(sessionID string) error {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    _, err := c.db.ExecContext(ctx, `
        DELETE FROM session_locks
        WHERE session_id = ?
    `, sessionID)

    if err != nil {
        return fmt.Errorf("error releasing session lock: %v", err)
    }

    return nil
}

func (c *Connection) ensureConnection() error {
    for retries := 0; retries < 3; retries++ {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        err := c.db.PingContext(ctx)
        cancel()

        if err == nil {
            return nil
        }

        log.Printf("Database ping failed (attempt %d/3): %v", retries+1, err)
        time.Sleep(time.Second * time.Duration(retries+1))
    }
    return fmt.Errorf("failed to establish database connection after 3 attempts")
}

func (c *Connection) Close() error {
    return c.db.Close()
}

func (c *Connection) Ping() error {
    return c.ensureConnection()
}

func (c *Connection) GetDB() *sql.DB {
    return c.db
}
