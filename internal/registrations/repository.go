package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventportal/backend/internal/models"
)

const uniqueViolation = "23505"

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InTx runs fn in a read-committed transaction, committing when fn returns nil.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

const tutorialColumns = `t.id, t.event_id, t.title, COALESCE(t.description, ''), COALESCE(t.location, ''),
	t.start_at, t.end_at, t.duration_seconds, t.vacancies, t.created_at, t.updated_at`

func scanTutorial(row pgx.Row, t *models.Tutorial) error {
	var seconds *int64
	if err := row.Scan(&t.ID, &t.EventID, &t.Title, &t.Description, &t.Location,
		&t.StartAt, &t.EndAt, &seconds, &t.Vacancies, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	if seconds != nil {
		d := time.Duration(*seconds) * time.Second
		t.Duration = &d
	}
	return nil
}

func (p *pgTx) loadTutorial(ctx context.Context, q string, id uuid.UUID) (*models.Tutorial, error) {
	var t models.Tutorial
	if err := scanTutorial(p.tx.QueryRow(ctx, q, id), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTutorialNotFound
		}
		return nil, fmt.Errorf("load tutorial: %w", err)
	}
	return &t, nil
}

func (p *pgTx) LockTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error) {
	return p.loadTutorial(ctx, `SELECT `+tutorialColumns+` FROM tutorials t WHERE t.id = $1 FOR UPDATE`, id)
}

func (p *pgTx) GetTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error) {
	return p.loadTutorial(ctx, `SELECT `+tutorialColumns+` FROM tutorials t WHERE t.id = $1`, id)
}

func (p *pgTx) ListEventSigners(ctx context.Context, eventID uuid.UUID) ([]models.OrderedSigner, error) {
	const q = `SELECT s.id, s.name, s.title, COALESCE(s.signature_key, ''), s.created_at, es.display_order
		FROM event_certificate_signers es
		JOIN certificate_signers s ON s.id = es.signer_id
		WHERE es.event_id = $1
		ORDER BY es.display_order, s.name`
	rows, err := p.tx.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event signers: %w", err)
	}
	defer rows.Close()
	var list []models.OrderedSigner
	for rows.Next() {
		var s models.OrderedSigner
		if err := rows.Scan(&s.ID, &s.Name, &s.Title, &s.SignatureKey, &s.CreatedAt, &s.DisplayOrder); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (p *pgTx) GetAttendeeByCPF(ctx context.Context, cpf string) (*models.Attendee, error) {
	const q = `SELECT id, COALESCE(full_name, ''), COALESCE(email, ''), birthday, cpf, created_at, updated_at
		FROM attendees WHERE cpf = $1`
	var a models.Attendee
	err := p.tx.QueryRow(ctx, q, cpf).Scan(&a.ID, &a.FullName, &a.Email, &a.Birthday, &a.CPF, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("get attendee: %w", err)
	}
	return &a, nil
}

// SaveAttendee upserts on cpf so two first-time subscriptions of one CPF converge on one row.
func (p *pgTx) SaveAttendee(ctx context.Context, a *models.Attendee) error {
	if a.ID == uuid.Nil {
		const q = `INSERT INTO attendees (full_name, email, birthday, cpf)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (cpf) DO UPDATE SET full_name = EXCLUDED.full_name, email = EXCLUDED.email,
				birthday = EXCLUDED.birthday, updated_at = NOW()
			RETURNING id, created_at, updated_at`
		if err := p.tx.QueryRow(ctx, q, a.FullName, a.Email, a.Birthday, a.CPF).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return fmt.Errorf("insert attendee: %w", err)
		}
		return nil
	}
	const q = `UPDATE attendees SET full_name = $2, email = $3, birthday = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	if err := p.tx.QueryRow(ctx, q, a.ID, a.FullName, a.Email, a.Birthday).Scan(&a.UpdatedAt); err != nil {
		return fmt.Errorf("update attendee: %w", err)
	}
	return nil
}

const registrationColumns = `r.id, r.tutorial_id, r.attendee_id, r.token, r.status, r.registered_at,
	COALESCE(r.certificate_key, ''), r.certificate_sent_at, r.updated_at`

func registrationDest(reg *models.Registration) []any {
	return []any{&reg.ID, &reg.TutorialID, &reg.AttendeeID, &reg.Token, &reg.Status, &reg.RegisteredAt,
		&reg.CertificateKey, &reg.CertificateSentAt, &reg.UpdatedAt}
}

func (p *pgTx) FindRegistration(ctx context.Context, tutorialID, attendeeID uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations r WHERE r.tutorial_id = $1 AND r.attendee_id = $2`
	var reg models.Registration
	if err := p.tx.QueryRow(ctx, q, tutorialID, attendeeID).Scan(registrationDest(&reg)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotSubscribed
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &reg, nil
}

func (p *pgTx) CountConfirmed(ctx context.Context, tutorialID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM registrations WHERE tutorial_id = $1 AND status = ANY($2)`
	statuses := make([]string, 0, len(models.ConfirmedStatuses))
	for _, s := range models.ConfirmedStatuses {
		statuses = append(statuses, string(s))
	}
	var n int
	if err := p.tx.QueryRow(ctx, q, tutorialID, statuses).Scan(&n); err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return n, nil
}

func (p *pgTx) HasOverlap(ctx context.Context, attendeeID uuid.UUID, start, end time.Time) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM registrations r
		JOIN tutorials t ON t.id = r.tutorial_id
		WHERE r.attendee_id = $1 AND t.start_at < $3 AND t.end_at > $2)`
	var exists bool
	if err := p.tx.QueryRow(ctx, q, attendeeID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return exists, nil
}

func (p *pgTx) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (tutorial_id, attendee_id, token, status, registered_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, updated_at`
	err := p.tx.QueryRow(ctx, q, reg.TutorialID, reg.AttendeeID, reg.Token, reg.Status, reg.RegisteredAt).
		Scan(&reg.ID, &reg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "registrations_tutorial_attendee_key" {
			return ErrAlreadySubscribed
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (p *pgTx) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	tag, err := p.tx.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

const detailQuery = `SELECT ` + registrationColumns + `,
	a.id, COALESCE(a.full_name, ''), COALESCE(a.email, ''), a.birthday, a.cpf, a.created_at, a.updated_at,
	` + tutorialColumns + `,
	e.id, e.title, e.slug, e.start_date, e.end_date, COALESCE(e.description, ''), COALESCE(e.location, ''),
	COALESCE(e.url, ''), COALESCE(e.image_key, ''), COALESCE(e.certificate_template, ''), e.created_at, e.updated_at
	FROM registrations r
	JOIN attendees a ON a.id = r.attendee_id
	JOIN tutorials t ON t.id = r.tutorial_id
	JOIN events e ON e.id = t.event_id`

func scanDetail(row pgx.Row) (*models.RegistrationDetail, error) {
	var d models.RegistrationDetail
	var seconds *int64
	dest := registrationDest(&d.Registration)
	dest = append(dest,
		&d.Attendee.ID, &d.Attendee.FullName, &d.Attendee.Email, &d.Attendee.Birthday, &d.Attendee.CPF, &d.Attendee.CreatedAt, &d.Attendee.UpdatedAt,
		&d.Tutorial.ID, &d.Tutorial.EventID, &d.Tutorial.Title, &d.Tutorial.Description, &d.Tutorial.Location,
		&d.Tutorial.StartAt, &d.Tutorial.EndAt, &seconds, &d.Tutorial.Vacancies, &d.Tutorial.CreatedAt, &d.Tutorial.UpdatedAt,
		&d.Event.ID, &d.Event.Title, &d.Event.Slug, &d.Event.StartDate, &d.Event.EndDate, &d.Event.Description, &d.Event.Location,
		&d.Event.URL, &d.Event.ImageKey, &d.Event.CertificateTemplate, &d.Event.CreatedAt, &d.Event.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if seconds != nil {
		dur := time.Duration(*seconds) * time.Second
		d.Tutorial.Duration = &dur
	}
	return &d, nil
}

func (p *pgTx) getDetail(ctx context.Context, where string, arg any) (*models.RegistrationDetail, error) {
	d, err := scanDetail(p.tx.QueryRow(ctx, detailQuery+` WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return d, nil
}

func (p *pgTx) GetRegistrationDetail(ctx context.Context, id uuid.UUID) (*models.RegistrationDetail, error) {
	return p.getDetail(ctx, `r.id = $1`, id)
}

func (p *pgTx) GetRegistrationDetailByToken(ctx context.Context, token uuid.UUID) (*models.RegistrationDetail, error) {
	return p.getDetail(ctx, `r.token = $1`, token)
}

func (p *pgTx) listDetails(ctx context.Context, q string, arg any) ([]models.RegistrationDetail, error) {
	rows, err := p.tx.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	var list []models.RegistrationDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

func (p *pgTx) ListRegistrationsByTutorial(ctx context.Context, tutorialID uuid.UUID) ([]models.RegistrationDetail, error) {
	return p.listDetails(ctx, detailQuery+` WHERE r.tutorial_id = $1 ORDER BY r.registered_at`, tutorialID)
}

// ListRegistrationsByEvent orders by tutorial title so batch output groups tutorials.
func (p *pgTx) ListRegistrationsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.RegistrationDetail, error) {
	return p.listDetails(ctx, detailQuery+` WHERE e.id = $1 ORDER BY t.title, t.id, a.full_name`, eventID)
}

func (p *pgTx) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus) error {
	tag, err := p.tx.Exec(ctx, `UPDATE registrations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func (p *pgTx) SetCertificate(ctx context.Context, id uuid.UUID, key string, status models.RegistrationStatus) error {
	const q = `UPDATE registrations SET certificate_key = $2, status = $3, updated_at = NOW() WHERE id = $1`
	tag, err := p.tx.Exec(ctx, q, id, key, status)
	if err != nil {
		return fmt.Errorf("set certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func (p *pgTx) MarkCertificateSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := p.tx.Exec(ctx, `UPDATE registrations SET certificate_sent_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark certificate sent: %w", err)
	}
	return nil
}

func (p *pgTx) InsertEmailLog(ctx context.Context, l *models.EmailLog) error {
	const q = `INSERT INTO email_logs (event_id, registration_id, email_type, recipient_email, subject, body_html,
			status, attempts, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		RETURNING id, created_at`
	err := p.tx.QueryRow(ctx, q, l.EventID, l.RegistrationID, l.EmailType, l.RecipientEmail, l.Subject, l.BodyHTML,
		l.Status, l.Attempts, l.SentAt, l.ErrorMessage).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}
