package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// InitializeDBSchema creates the engine's tables when they do not
// exist yet.  It is safe to call on every startup.
func InitializeDBSchema(ctx context.Context, db *sql.DB) error {
	stmts := []struct {
		name string
		ddl  string
	}{
		{"products", `
CREATE TABLE IF NOT EXISTS products (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    type VARCHAR(16) NOT NULL,
    name VARCHAR(255) NOT NULL,
    waitlist_enabled TINYINT(1) NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`},
		{"availability_slots", `
CREATE TABLE IF NOT EXISTS availability_slots (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    product_id BIGINT UNSIGNED NOT NULL,
    slot_start DATETIME NOT NULL,
    total_capacity INT NOT NULL,
    reserved_count INT NOT NULL DEFAULT 0,
    stored_status VARCHAR(16) NULL,
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_slots_product_start (product_id, slot_start)
);`},
		{"slot_prices", `
CREATE TABLE IF NOT EXISTS slot_prices (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    availability_id BIGINT UNSIGNED NOT NULL,
    person_type VARCHAR(8) NOT NULL,
    unit_price_cents BIGINT NOT NULL,
    UNIQUE KEY uq_slot_person (availability_id, person_type)
);`},
		{"booking_requests", `
CREATE TABLE IF NOT EXISTS booking_requests (
    id CHAR(36) NOT NULL PRIMARY KEY,
    availability_id BIGINT UNSIGNED NOT NULL,
    user_id BIGINT UNSIGNED NOT NULL,
    quantity INT NOT NULL,
    qty_adult INT NOT NULL DEFAULT 0,
    qty_child INT NOT NULL DEFAULT 0,
    qty_pet INT NOT NULL DEFAULT 0,
    status VARCHAR(16) NOT NULL,
    expires_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    KEY idx_requests_status_expiry (status, expires_at),
    KEY idx_requests_slot (availability_id)
);`},
		{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    order_item_id BIGINT UNSIGNED NULL,
    user_id BIGINT UNSIGNED NOT NULL,
    availability_id BIGINT UNSIGNED NOT NULL,
    status VARCHAR(16) NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_bookings_user (user_id),
    KEY idx_bookings_slot (availability_id)
);`},
		{"booking_items", `
CREATE TABLE IF NOT EXISTS booking_items (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    booking_id BIGINT UNSIGNED NOT NULL,
    person_type VARCHAR(8) NOT NULL,
    quantity INT NOT NULL,
    unit_price_cents BIGINT NOT NULL,
    total_price_cents BIGINT NOT NULL,
    KEY idx_items_booking (booking_id)
);`},
		{"waitlist_entries", `
CREATE TABLE IF NOT EXISTS waitlist_entries (
    id CHAR(36) NOT NULL PRIMARY KEY,
    availability_id BIGINT UNSIGNED NOT NULL,
    user_id BIGINT UNSIGNED NOT NULL,
    position INT NOT NULL,
    status VARCHAR(12) NOT NULL,
    is_active TINYINT(1) AS (CASE WHEN status IN ('waiting', 'notified') THEN 1 ELSE NULL END) STORED,
    notified_at DATETIME NULL,
    expired_at DATETIME NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uq_waitlist_position (availability_id, position),
    UNIQUE KEY uq_waitlist_active_user (availability_id, user_id, is_active),
    KEY idx_waitlist_slot_status (availability_id, status, position)
);`},
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.name, err)
		}
	}
	return nil
}
