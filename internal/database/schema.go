package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// reserved_at carries microseconds: rollback matches rows by the exact
// reservation stamp of the attempt that took them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id    VARCHAR(36)  NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		date  DATETIME(6)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS zones (
		id              VARCHAR(36)  NOT NULL PRIMARY KEY,
		event_id        VARCHAR(36)  NOT NULL,
		name            VARCHAR(64)  NOT NULL,
		price           BIGINT       NOT NULL,
		total_seats     INT UNSIGNED NOT NULL,
		available_seats INT UNSIGNED NOT NULL,
		type            ENUM('seated','standing') NOT NULL,
		UNIQUE KEY uq_zones_event_name (event_id, name),
		CONSTRAINT fk_zones_event FOREIGN KEY (event_id) REFERENCES events(id),
		CONSTRAINT chk_zones_stock CHECK (available_seats <= total_seats)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id          VARCHAR(36) NOT NULL PRIMARY KEY,
		event_id    VARCHAR(36) NOT NULL,
		zone_id     VARCHAR(36) NOT NULL,
		zone_name   VARCHAR(64) NOT NULL,
		seat_number VARCHAR(80) NOT NULL,
		status      ENUM('available','reserved','sold') NOT NULL DEFAULT 'available',
		owner_id    VARCHAR(64) NULL,
		reserved_at DATETIME(6) NULL,
		UNIQUE KEY uq_tickets_seat (event_id, zone_name, seat_number),
		KEY idx_tickets_lookup (event_id, zone_name, status),
		CONSTRAINT fk_tickets_zone FOREIGN KEY (zone_id) REFERENCES zones(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id          VARCHAR(36) NOT NULL PRIMARY KEY,
		user_id     VARCHAR(64) NOT NULL,
		event_id    VARCHAR(36) NOT NULL,
		zone_id     VARCHAR(36) NOT NULL,
		zone_name   VARCHAR(64) NOT NULL,
		quantity    INT UNSIGNED NOT NULL,
		total_price BIGINT      NOT NULL,
		status      ENUM('pending','confirmed','cancelled') NOT NULL,
		expires_at  DATETIME(6) NOT NULL,
		created_at  DATETIME(6) NOT NULL,
		KEY idx_bookings_status (status),
		CONSTRAINT fk_bookings_event FOREIGN KEY (event_id) REFERENCES events(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_tickets (
		booking_id VARCHAR(36) NOT NULL,
		ticket_id  VARCHAR(36) NOT NULL,
		PRIMARY KEY (booking_id, ticket_id),
		CONSTRAINT fk_bt_booking FOREIGN KEY (booking_id) REFERENCES bookings(id),
		CONSTRAINT fk_bt_ticket FOREIGN KEY (ticket_id) REFERENCES tickets(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// InitializeSchema creates the booking tables if they do not exist.  The
// driver runs one statement per call, so the DDL is applied in order.
func InitializeSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
