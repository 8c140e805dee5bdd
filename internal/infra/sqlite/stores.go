package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/veridichain/veridi/internal/domain"
)

// ─── Journal Operations ─────────────────────────────────────────────────────

// AppendEntry appends a journal entry and returns its id.
func (db *DB) AppendEntry(ctx context.Context, e domain.LogEntry) (int64, error) {
	res, err := db.db.ExecContext(ctx, `
		INSERT INTO journal (timestamp, type, details, amount, tx_hash)
		VALUES (?, ?, ?, ?, ?)
	`, formatTime(e.Timestamp), string(e.Type), e.Details, e.Amount, e.TxHash)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEntries returns every journal entry in insertion order.
func (db *DB) ListEntries(ctx context.Context) ([]domain.LogEntry, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, timestamp, type, details, amount, tx_hash
		FROM journal ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var ts, typ string
		if err := rows.Scan(&e.ID, &ts, &typ, &e.Details, &e.Amount, &e.TxHash); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		e.Type = domain.EntryType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEntries returns the number of journal entries.
func (db *DB) CountEntries(ctx context.Context) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal`).Scan(&n)
	return n, err
}

// ─── Payment Operations ─────────────────────────────────────────────────────

// InsertPayment stores a successful payment record.
func (db *DB) InsertPayment(ctx context.Context, p domain.PaymentRecord) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO payments (payment_id, payer, credits, currency, gateway, status, timestamp, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM payments))
	`, p.PaymentID, p.Payer, p.Credits, p.Currency.String(), p.Gateway, string(p.Status), formatTime(p.Timestamp))
	return err
}

// ListPayments returns payment records in insertion order. An empty payer
// returns every record.
func (db *DB) ListPayments(ctx context.Context, payer string) ([]domain.PaymentRecord, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT payment_id, payer, credits, currency, gateway, status, timestamp
		FROM payments WHERE (? = '' OR payer = ?) ORDER BY seq
	`, payer, payer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentRecord
	for rows.Next() {
		var p domain.PaymentRecord
		var currency, status, ts string
		if err := rows.Scan(&p.PaymentID, &p.Payer, &p.Credits, &currency, &p.Gateway, &status, &ts); err != nil {
			return nil, err
		}
		p.Currency, err = decimal.NewFromString(currency)
		if err != nil {
			return nil, fmt.Errorf("payment %s currency: %w", p.PaymentID, err)
		}
		p.Status = domain.PaymentStatus(status)
		p.Timestamp = parseTime(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ─── Certificate Operations ─────────────────────────────────────────────────

// InsertCertificate stores a certificate.
func (db *DB) InsertCertificate(ctx context.Context, c domain.Certificate) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO certificates (certificate_id, factory, quota_seq, quota_amount, purchased,
			issue_date, issued_by, status, benefits_eligible)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Factory, c.QuotaSeq, c.QuotaAmount, c.Purchased,
		formatTime(c.IssueDate), c.IssuedBy, c.Status, boolInt(c.BenefitsEligible))
	return err
}

// ListCertificates returns certificates in issue order. An empty factory
// returns every certificate.
func (db *DB) ListCertificates(ctx context.Context, factory string) ([]domain.Certificate, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT certificate_id, factory, quota_seq, quota_amount, purchased,
			issue_date, issued_by, status, benefits_eligible
		FROM certificates WHERE (? = '' OR factory = ?) ORDER BY seq
	`, factory, factory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Certificate
	for rows.Next() {
		var c domain.Certificate
		var issued string
		var eligible int
		if err := rows.Scan(&c.ID, &c.Factory, &c.QuotaSeq, &c.QuotaAmount, &c.Purchased,
			&issued, &c.IssuedBy, &c.Status, &eligible); err != nil {
			return nil, err
		}
		c.IssueDate = parseTime(issued)
		c.BenefitsEligible = eligible == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountCertificates returns the number of certificates issued.
func (db *DB) CountCertificates(ctx context.Context) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM certificates`).Scan(&n)
	return n, err
}

// HasCertificate reports whether a certificate exists for the factory's
// quota instance.
func (db *DB) HasCertificate(ctx context.Context, factory string, quotaSeq int64) (bool, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM certificates WHERE factory = ? AND quota_seq = ?
	`, factory, quotaSeq).Scan(&n)
	return n > 0, err
}

// LastQuotaSeq returns the highest quota instance recorded for the factory
// in the milestone or certificate tables, or 0.
func (db *DB) LastQuotaSeq(ctx context.Context, factory string) (int64, error) {
	var seq int64
	err := db.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT quota_seq AS seq FROM milestones WHERE factory = ?
			UNION ALL
			SELECT quota_seq AS seq FROM certificates WHERE factory = ?
		)
	`, factory, factory).Scan(&seq)
	return seq, err
}

// ─── Notification Operations ────────────────────────────────────────────────

// AppendNotification inserts a notification and evicts the oldest rows so
// that at most capacity remain. Returns the number of evicted rows.
func (db *DB) AppendNotification(ctx context.Context, n domain.Notification, capacity int) (int64, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (notification_id, timestamp, action, details, subject, notified_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, formatTime(n.Timestamp), string(n.Action), n.Details, n.Subject, n.NotifiedBy); err != nil {
		return 0, err
	}

	var evicted int64
	if capacity > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM notifications WHERE seq NOT IN (
				SELECT seq FROM notifications ORDER BY seq DESC LIMIT ?
			)
		`, capacity)
		if err != nil {
			return 0, err
		}
		evicted, _ = res.RowsAffected()
	}
	return evicted, tx.Commit()
}

// ListNotifications returns the newest limit notifications, oldest first.
// A non-positive limit returns all retained notifications.
func (db *DB) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT notification_id, timestamp, action, details, subject, notified_by FROM (
			SELECT * FROM notifications ORDER BY seq DESC LIMIT ?
		) ORDER BY seq
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var ts, action string
		if err := rows.Scan(&n.ID, &ts, &action, &n.Details, &n.Subject, &n.NotifiedBy); err != nil {
			return nil, err
		}
		n.Timestamp = parseTime(ts)
		n.Action = domain.Action(action)
		out = append(out, n)
	}
	return out, rows.Err()
}

// ─── Milestone Operations ───────────────────────────────────────────────────

// LoadMilestone returns the milestone state for a factory. A factory with no
// row yet has zero state.
func (db *DB) LoadMilestone(ctx context.Context, factory string) (domain.MilestoneState, error) {
	s := domain.MilestoneState{Factory: factory}
	var bands int
	var updated string
	err := db.db.QueryRowContext(ctx, `
		SELECT quota_seq, bands, updated_at FROM milestones WHERE factory = ?
	`, factory).Scan(&s.QuotaSeq, &bands, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	s.Bands = domain.Band(bands)
	s.UpdatedAt = parseTime(updated)
	return s, nil
}

// SaveMilestone upserts the milestone state for a factory.
func (db *DB) SaveMilestone(ctx context.Context, s domain.MilestoneState) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO milestones (factory, quota_seq, bands, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(factory) DO UPDATE SET
			quota_seq  = excluded.quota_seq,
			bands      = excluded.bands,
			updated_at = excluded.updated_at
	`, s.Factory, s.QuotaSeq, int(s.Bands), formatTime(s.UpdatedAt))
	return err
}

var (
	_ domain.JournalStore      = (*DB)(nil)
	_ domain.PaymentStore      = (*DB)(nil)
	_ domain.CertificateStore  = (*DB)(nil)
	_ domain.NotificationStore = (*DB)(nil)
	_ domain.MilestoneStore    = (*DB)(nil)
)
