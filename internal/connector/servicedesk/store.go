// Copyright 2025 AI Gateway Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package servicedesk

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// LocalProviderID identifies the SQLite-backed local service desk
const LocalProviderID = "local-desk"

// LocalDesk is a service desk connector that persists tickets in a local
// SQLite database. It backs development setups where no vendor desk is
// configured but tickets should survive restarts.
type LocalDesk struct {
	db *sql.DB
}

// NewLocalDesk opens or creates the ticket database at dbPath
func NewLocalDesk(dbPath string) (*LocalDesk, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticket database: %w", err)
	}

	desk := &LocalDesk{db: db}
	if err := desk.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize ticket schema: %w", err)
	}
	return desk, nil
}

// Close closes the database connection
func (d *LocalDesk) Close() error {
	return d.db.Close()
}

func (d *LocalDesk) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS tickets (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			summary TEXT,
			body TEXT,
			severity TEXT,
			status TEXT,
			requester TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := d.db.Exec(query)
	return err
}

// CreateTicket inserts a ticket with a sequential LOC-n identifier
func (d *LocalDesk) CreateTicket(ctx context.Context, title, body, severity, requester string) (*connector.Ticket, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM tickets").Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to allocate ticket number: %w", err)
	}
	id := fmt.Sprintf("LOC-%d", next)

	_, err = tx.ExecContext(ctx,
		"INSERT INTO tickets (id, summary, body, severity, status, requester) VALUES (?, ?, ?, ?, ?, ?)",
		id, title, body, severity, "New", requester,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ticket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ticket: %w", err)
	}

	return &connector.Ticket{
		ID:        id,
		Summary:   title,
		Body:      body,
		Severity:  severity,
		Status:    "New",
		Requester: requester,
	}, nil
}

// GetTicket loads a ticket by id
func (d *LocalDesk) GetTicket(ctx context.Context, ticketID string) (*connector.Ticket, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT id, summary, body, severity, status, requester FROM tickets WHERE id = ?",
		ticketID,
	)

	var ticket connector.Ticket
	err := row.Scan(&ticket.ID, &ticket.Summary, &ticket.Body, &ticket.Severity, &ticket.Status, &ticket.Requester)
	if err == sql.ErrNoRows {
		return nil, resilience.NewServiceError(fmt.Sprintf("ticket %s not found", ticketID), resilience.ErrorCodeNotFound, http.StatusNotFound, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	return &ticket, nil
}

// Validate runs a trivial query against the ticket table
func (d *LocalDesk) Validate(ctx context.Context) (connector.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tickets").Scan(&count); err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	return connector.ValidationResult{
		Status: connector.ValidationOK,
		Reason: fmt.Sprintf("ticket store reachable (%d tickets)", count),
	}, nil
}
