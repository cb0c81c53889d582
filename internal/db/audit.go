package db

import (
	"github.com/scriptgate/scriptgate/internal/models"
)

// InsertAuditEvent appends an audit event. The audit log is append-only:
// there are no update or delete operations in this file.
func InsertAuditEvent(q Querier, ev *models.AuditEvent) (int64, error) {
	result, err := q.Exec(
		"INSERT INTO audit_events (website_id, token_id, event_type, created_at, actor, reason) VALUES (?, ?, ?, ?, ?, ?)",
		ev.WebsiteID, ev.TokenID, ev.EventType, ev.CreatedAt, ev.Actor, ev.Reason,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListAuditEventsByWebsite returns a website's audit events in the order the
// transitions occurred.
func ListAuditEventsByWebsite(q Querier, websiteID string) ([]models.AuditEvent, error) {
	return listAuditEvents(q,
		"SELECT id, website_id, token_id, event_type, created_at, actor, reason FROM audit_events WHERE website_id = ? ORDER BY id",
		websiteID)
}

// ListAuditEventsByToken returns the audit events recorded for a single token.
func ListAuditEventsByToken(q Querier, tokenID string) ([]models.AuditEvent, error) {
	return listAuditEvents(q,
		"SELECT id, website_id, token_id, event_type, created_at, actor, reason FROM audit_events WHERE token_id = ? ORDER BY id",
		tokenID)
}

func listAuditEvents(q Querier, query string, arg any) ([]models.AuditEvent, error) {
	rows, err := q.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.WebsiteID, &ev.TokenID, &ev.EventType, &ev.CreatedAt, &ev.Actor, &ev.Reason); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
