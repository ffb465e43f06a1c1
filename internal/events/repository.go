package events

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

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Repository handles event catalogue persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const eventColumns = `id, title, slug, start_date, end_date, COALESCE(description, ''), COALESCE(location, ''),
	COALESCE(url, ''), COALESCE(image_key, ''), COALESCE(certificate_template, ''), created_at, updated_at`

func scanEvent(row pgx.Row, e *models.Event) error {
	return row.Scan(&e.ID, &e.Title, &e.Slug, &e.StartDate, &e.EndDate, &e.Description, &e.Location,
		&e.URL, &e.ImageKey, &e.CertificateTemplate, &e.CreatedAt, &e.UpdatedAt)
}

func (r *Repository) getEvent(ctx context.Context, where string, arg any) (*models.Event, error) {
	var e models.Event
	if err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE `+where, arg), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// ListEvents returns all events, most recent first.
func (r *Repository) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_date DESC, title`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// GetEvent returns an event by ID.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.getEvent(ctx, "id = $1", id)
}

// GetEventBySlug returns an event by slug.
func (r *Repository) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return r.getEvent(ctx, "slug = $1", slug)
}

// CreateEvent inserts a new event.
func (r *Repository) CreateEvent(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, slug, start_date, end_date, description, location, url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, e.Title, e.Slug, e.StartDate, e.EndDate, e.Description, e.Location, e.URL).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return ErrSlugTaken
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// UpdateEvent updates the editable event fields. The slug never changes.
func (r *Repository) UpdateEvent(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, start_date = $3, end_date = $4, description = NULLIF($5, ''),
		location = NULLIF($6, ''), url = NULLIF($7, ''), updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.ID, e.Title, e.StartDate, e.EndDate, e.Description, e.Location, e.URL).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (r *Repository) execOne(ctx context.Context, notFound error, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

// DeleteEvent removes an event with its tutorials and signer links.
func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, ErrEventNotFound, `DELETE FROM events WHERE id = $1`, id)
}

// SetEventImage stores the blob key of the event image.
func (r *Repository) SetEventImage(ctx context.Context, id uuid.UUID, key string) error {
	return r.execOne(ctx, ErrEventNotFound, `UPDATE events SET image_key = $2, updated_at = NOW() WHERE id = $1`, id, key)
}

// SetCertificateTemplate stores the certificate template markup. Empty clears it.
func (r *Repository) SetCertificateTemplate(ctx context.Context, id uuid.UUID, markup string) error {
	return r.execOne(ctx, ErrEventNotFound,
		`UPDATE events SET certificate_template = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`, id, markup)
}

const tutorialColumns = `t.id, t.event_id, t.title, COALESCE(t.description, ''), COALESCE(t.location, ''),
	t.start_at, t.end_at, t.duration_seconds, t.vacancies, t.created_at, t.updated_at`

func scanTutorial(row pgx.Row, t *models.Tutorial, extra ...any) error {
	var seconds *int64
	dest := []any{&t.ID, &t.EventID, &t.Title, &t.Description, &t.Location,
		&t.StartAt, &t.EndAt, &seconds, &t.Vacancies, &t.CreatedAt, &t.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if seconds != nil {
		d := time.Duration(*seconds) * time.Second
		t.Duration = &d
	}
	return nil
}

// ListTutorials returns the event's tutorials with confirmed counts and instructors.
func (r *Repository) ListTutorials(ctx context.Context, eventID uuid.UUID) ([]models.TutorialSummary, error) {
	const q = `SELECT ` + tutorialColumns + `,
			(SELECT COUNT(*) FROM registrations r
				WHERE r.tutorial_id = t.id AND r.status IN ('confirmed', 'attended', 'certified'))
		FROM tutorials t WHERE t.event_id = $1
		ORDER BY t.start_at, t.title`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list tutorials: %w", err)
	}
	var list []models.TutorialSummary
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var s models.TutorialSummary
		if err := scanTutorial(rows, &s.Tutorial, &s.Subscriptions); err != nil {
			rows.Close()
			return nil, err
		}
		if s.Duration != nil {
			secs := int64(*s.Duration / time.Second)
			s.DurationSeconds = &secs
		}
		s.Instructors = []models.Instructor{}
		index[s.ID] = len(list)
		list = append(list, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const iq = `SELECT ti.tutorial_id, i.id, i.name, COALESCE(i.bio, ''), COALESCE(i.photo_key, ''), i.created_at
		FROM tutorial_instructors ti
		JOIN instructors i ON i.id = ti.instructor_id
		JOIN tutorials t ON t.id = ti.tutorial_id
		WHERE t.event_id = $1
		ORDER BY i.name`
	irows, err := r.pool.Query(ctx, iq, eventID)
	if err != nil {
		return nil, fmt.Errorf("list tutorial instructors: %w", err)
	}
	defer irows.Close()
	for irows.Next() {
		var tutorialID uuid.UUID
		var in models.Instructor
		if err := irows.Scan(&tutorialID, &in.ID, &in.Name, &in.Bio, &in.PhotoKey, &in.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[tutorialID]; ok {
			list[i].Instructors = append(list[i].Instructors, in)
		}
	}
	return list, irows.Err()
}

// GetTutorial returns a tutorial by ID.
func (r *Repository) GetTutorial(ctx context.Context, id uuid.UUID) (*models.Tutorial, error) {
	var t models.Tutorial
	if err := scanTutorial(r.pool.QueryRow(ctx, `SELECT `+tutorialColumns+` FROM tutorials t WHERE t.id = $1`, id), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTutorialNotFound
		}
		return nil, fmt.Errorf("get tutorial: %w", err)
	}
	return &t, nil
}

// SaveTutorial inserts or updates t and replaces its instructor list in one transaction.
func (r *Repository) SaveTutorial(ctx context.Context, t *models.Tutorial, instructorIDs []uuid.UUID) error {
	var seconds *int64
	if t.Duration != nil {
		s := int64(*t.Duration / time.Second)
		seconds = &s
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if t.ID == uuid.Nil {
			const q = `INSERT INTO tutorials (event_id, title, description, location, start_at, end_at, duration_seconds, vacancies)
				VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
				RETURNING id, created_at, updated_at`
			err = tx.QueryRow(ctx, q, t.EventID, t.Title, t.Description, t.Location, t.StartAt, t.EndAt, seconds, t.Vacancies).
				Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		} else {
			const q = `UPDATE tutorials SET title = $2, description = NULLIF($3, ''), location = NULLIF($4, ''),
					start_at = $5, end_at = $6, duration_seconds = $7, vacancies = $8, updated_at = NOW()
				WHERE id = $1 RETURNING created_at, updated_at`
			err = tx.QueryRow(ctx, q, t.ID, t.Title, t.Description, t.Location, t.StartAt, t.EndAt, seconds, t.Vacancies).
				Scan(&t.CreatedAt, &t.UpdatedAt)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTutorialNotFound
		}
		if err != nil {
			if pgCode(err) == foreignKeyViolation {
				return ErrEventNotFound
			}
			return fmt.Errorf("save tutorial: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tutorial_instructors WHERE tutorial_id = $1`, t.ID); err != nil {
			return fmt.Errorf("clear instructors: %w", err)
		}
		for _, id := range instructorIDs {
			_, err := tx.Exec(ctx, `INSERT INTO tutorial_instructors (tutorial_id, instructor_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, t.ID, id)
			if err != nil {
				if pgCode(err) == foreignKeyViolation {
					return ErrInstructorNotFound
				}
				return fmt.Errorf("add instructor: %w", err)
			}
		}
		return nil
	})
}

// DeleteTutorial removes a tutorial with its registrations.
func (r *Repository) DeleteTutorial(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, ErrTutorialNotFound, `DELETE FROM tutorials WHERE id = $1`, id)
}

const instructorColumns = `id, name, COALESCE(bio, ''), COALESCE(photo_key, ''), created_at`

// ListInstructors returns all instructors by name.
func (r *Repository) ListInstructors(ctx context.Context) ([]models.Instructor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+instructorColumns+` FROM instructors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	defer rows.Close()
	var list []models.Instructor
	for rows.Next() {
		var in models.Instructor
		if err := rows.Scan(&in.ID, &in.Name, &in.Bio, &in.PhotoKey, &in.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, in)
	}
	return list, rows.Err()
}

// GetInstructor returns an instructor by ID.
func (r *Repository) GetInstructor(ctx context.Context, id uuid.UUID) (*models.Instructor, error) {
	var in models.Instructor
	err := r.pool.QueryRow(ctx, `SELECT `+instructorColumns+` FROM instructors WHERE id = $1`, id).
		Scan(&in.ID, &in.Name, &in.Bio, &in.PhotoKey, &in.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInstructorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get instructor: %w", err)
	}
	return &in, nil
}

// CreateInstructor inserts an instructor.
func (r *Repository) CreateInstructor(ctx context.Context, in *models.Instructor) error {
	const q = `INSERT INTO instructors (name, bio) VALUES ($1, NULLIF($2, '')) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, in.Name, in.Bio).Scan(&in.ID, &in.CreatedAt)
}

// SetInstructorPhoto stores the blob key of the instructor photo.
func (r *Repository) SetInstructorPhoto(ctx context.Context, id uuid.UUID, key string) error {
	return r.execOne(ctx, ErrInstructorNotFound, `UPDATE instructors SET photo_key = $2 WHERE id = $1`, id, key)
}

const signerColumns = `id, name, title, COALESCE(signature_key, ''), created_at`

// ListSigners returns all certificate signers by name.
func (r *Repository) ListSigners(ctx context.Context) ([]models.CertificateSigner, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+signerColumns+` FROM certificate_signers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list signers: %w", err)
	}
	defer rows.Close()
	var list []models.CertificateSigner
	for rows.Next() {
		var s models.CertificateSigner
		if err := rows.Scan(&s.ID, &s.Name, &s.Title, &s.SignatureKey, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetSigner returns a signer by ID.
func (r *Repository) GetSigner(ctx context.Context, id uuid.UUID) (*models.CertificateSigner, error) {
	var s models.CertificateSigner
	err := r.pool.QueryRow(ctx, `SELECT `+signerColumns+` FROM certificate_signers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Title, &s.SignatureKey, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSignerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get signer: %w", err)
	}
	return &s, nil
}

// CreateSigner inserts a certificate signer.
func (r *Repository) CreateSigner(ctx context.Context, s *models.CertificateSigner) error {
	const q = `INSERT INTO certificate_signers (name, title) VALUES ($1, $2) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, s.Name, s.Title).Scan(&s.ID, &s.CreatedAt)
}

// SetSignerSignature stores the blob key of the signature image.
func (r *Repository) SetSignerSignature(ctx context.Context, id uuid.UUID, key string) error {
	return r.execOne(ctx, ErrSignerNotFound, `UPDATE certificate_signers SET signature_key = $2 WHERE id = $1`, id, key)
}

// AttachSigner links a signer to an event, updating the order when already linked.
func (r *Repository) AttachSigner(ctx context.Context, link models.EventCertificateSigner) error {
	const q = `INSERT INTO event_certificate_signers (event_id, signer_id, display_order) VALUES ($1, $2, $3)
		ON CONFLICT (event_id, signer_id) DO UPDATE SET display_order = EXCLUDED.display_order`
	_, err := r.pool.Exec(ctx, q, link.EventID, link.SignerID, link.DisplayOrder)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return ErrSignerNotFound
		}
		return fmt.Errorf("attach signer: %w", err)
	}
	return nil
}

// DetachSigner removes a signer from an event.
func (r *Repository) DetachSigner(ctx context.Context, eventID, signerID uuid.UUID) error {
	return r.execOne(ctx, ErrSignerNotFound,
		`DELETE FROM event_certificate_signers WHERE event_id = $1 AND signer_id = $2`, eventID, signerID)
}

// ListEventSigners returns the event's signers in display order.
func (r *Repository) ListEventSigners(ctx context.Context, eventID uuid.UUID) ([]models.OrderedSigner, error) {
	const q = `SELECT s.id, s.name, s.title, COALESCE(s.signature_key, ''), s.created_at, es.display_order
		FROM event_certificate_signers es
		JOIN certificate_signers s ON s.id = es.signer_id
		WHERE es.event_id = $1
		ORDER BY es.display_order, s.name`
	rows, err := r.pool.Query(ctx, q, eventID)
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
