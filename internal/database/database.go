package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

// Service wraps the Postgres connection: health reporting plus the durable
// referral ledger.
type Service interface {
	Health() map[string]string
	RecordReferral(ctx context.Context, code, newUserID string) error
	CountReferrals(ctx context.Context, code string) (int, error)
	RecentReferrals(ctx context.Context, code string, limit int) ([]string, error)
	Close() error
}

type service struct {
	db *sql.DB
}

var (
	database = os.Getenv("QUANTSPIN_DB_DATABASE")
	password = os.Getenv("QUANTSPIN_DB_PASSWORD")
	username = os.Getenv("QUANTSPIN_DB_USERNAME")
	port     = os.Getenv("QUANTSPIN_DB_PORT")
	host     = os.Getenv("QUANTSPIN_DB_HOST")
	schema   = os.Getenv("QUANTSPIN_DB_SCHEMA")
)

func New() Service {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("[DB] Failed to open connection: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &service{db: db}
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if dbStats.OpenConnections > 20 {
		stats["message"] = "The database is experiencing heavy load"
	}

	return stats
}

// RecordReferral appends one referral credit to the ledger.
func (s *service) RecordReferral(ctx context.Context, code, newUserID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO referrals (referral_code, new_user_id) VALUES ($1, $2)`,
		code, newUserID)
	if err != nil {
		return fmt.Errorf("record referral: %w", err)
	}
	return nil
}

func (s *service) CountReferrals(ctx context.Context, code string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referral_code = $1`,
		code).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}

// RecentReferrals returns the newest referred user ids, newest first.
func (s *service) RecentReferrals(ctx context.Context, code string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT new_user_id FROM referrals WHERE referral_code = $1 ORDER BY created_at DESC LIMIT $2`,
		code, limit)
	if err != nil {
		return nil, fmt.Errorf("recent referrals: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, fmt.Errorf("scan referral row: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnected from database: %s", database)
	return s.db.Close()
}
