// Package calls: repository.go хранит звонки и записи.
package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/green-earth/internal/common"
	"serotonyl.ru/green-earth/internal/db/postgres"
)

// errStaleStatus: звонок уже не в ожидаемом состоянии.
var errStaleStatus = errors.New("состояние звонка изменилось")

const callColumns = `id, caller_id, callee_id, media, status, created_at,
	answered_at, connected_at, ended_at, duration_seconds`

// Repository предоставляет методы для работы со звонками.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий звонков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanCall(row pgx.Row) (*Call, error) {
	c := &Call{}
	err := row.Scan(&c.ID, &c.CallerID, &c.CalleeID, &c.Media, &c.Status, &c.CreatedAt,
		&c.AnsweredAt, &c.ConnectedAt, &c.EndedAt, &c.DurationSeconds)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create записывает новый звонок в состоянии ringing.
func (r *Repository) Create(ctx context.Context, callerID, calleeID uuid.UUID, media Media) (*Call, error) {
	c, err := scanCall(r.db.QueryRow(ctx, `
		INSERT INTO calls (id, caller_id, callee_id, media, status)
		VALUES ($1, $2, $3, $4, 'ringing')
		RETURNING `+callColumns,
		uuid.New(), callerID, calleeID, media,
	))
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка создания звонка: %w", err)
	}
	return c, nil
}

// Get возвращает звонок по ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Call, error) {
	c, err := scanCall(r.db.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrCallNotFound
		}
		return nil, fmt.Errorf("ошибка получения звонка: %w", err)
	}
	return c, nil
}

// Transition переводит звонок из from в to одним UPDATE.
// Если звонок уже в другом состоянии, возвращает errStaleStatus.
// Длительность считается только для ended после connected.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Call, error) {
	c, err := scanCall(r.db.QueryRow(ctx, `
		UPDATE calls SET
			status = $3::varchar,
			answered_at = CASE WHEN $3::varchar IN ('accepted', 'rejected') THEN NOW() ELSE answered_at END,
			connected_at = CASE WHEN $3::varchar = 'connected' THEN NOW() ELSE connected_at END,
			ended_at = CASE WHEN $3::varchar IN ('ended', 'rejected', 'missed') THEN NOW() ELSE ended_at END,
			duration_seconds = CASE
				WHEN $3::varchar = 'ended' AND connected_at IS NOT NULL
				THEN GREATEST(0, EXTRACT(EPOCH FROM NOW() - connected_at))::int
				ELSE 0
			END
		WHERE id = $1 AND status = $2::varchar
		RETURNING `+callColumns,
		id, string(from), string(to),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errStaleStatus
		}
		return nil, fmt.Errorf("ошибка смены состояния звонка: %w", err)
	}
	return c, nil
}

// StaleRinging: звонки, которые звонят дольше, чем до before.
func (r *Repository) StaleRinging(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM calls WHERE status = 'ringing' AND created_at < $1 ORDER BY created_at
	`, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска зависших звонков: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования звонка: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListLog возвращает завершённые звонки пользователя с именем собеседника.
func (r *Repository) ListLog(ctx context.Context, userID uuid.UUID, limit int) ([]LogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.caller_id, c.callee_id, c.media, c.status, c.created_at,
		       c.answered_at, c.connected_at, c.ended_at, c.duration_seconds,
		       COALESCE(NULLIF(p.display_name, ''), p.username, '')
		FROM calls c
		JOIN profiles p ON p.id = CASE WHEN c.caller_id = $1 THEN c.callee_id ELSE c.caller_id END
		WHERE (c.caller_id = $1 OR c.callee_id = $1)
		  AND c.status IN ('ended', 'rejected', 'missed')
		ORDER BY c.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала звонков: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		c := &Call{}
		var peer string
		if err := rows.Scan(&c.ID, &c.CallerID, &c.CalleeID, &c.Media, &c.Status, &c.CreatedAt,
			&c.AnsweredAt, &c.ConnectedAt, &c.EndedAt, &c.DurationSeconds, &peer); err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала: %w", err)
		}
		out = append(out, EntryFor(c, userID, peer))
	}
	return out, rows.Err()
}

// --- Групповые звонки ---

// CreateGroupCall записывает групповой звонок.
func (r *Repository) CreateGroupCall(ctx context.Context, conversationID, startedBy uuid.UUID, media Media) (*GroupCall, error) {
	g := &GroupCall{}
	err := r.db.QueryRow(ctx, `
		INSERT INTO group_calls (id, conversation_id, started_by, media)
		VALUES ($1, $2, $3, $4)
		RETURNING id, conversation_id, started_by, media, created_at, ended_at
	`, uuid.New(), conversationID, startedBy, media).Scan(
		&g.ID, &g.ConversationID, &g.StartedBy, &g.Media, &g.CreatedAt, &g.EndedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return nil, common.ErrConversationNotFound
		}
		return nil, fmt.Errorf("ошибка создания группового звонка: %w", err)
	}
	return g, nil
}

// GetGroupCall возвращает групповой звонок по ID.
func (r *Repository) GetGroupCall(ctx context.Context, id uuid.UUID) (*GroupCall, error) {
	g := &GroupCall{}
	err := r.db.QueryRow(ctx, `
		SELECT id, conversation_id, started_by, media, created_at, ended_at
		FROM group_calls WHERE id = $1
	`, id).Scan(&g.ID, &g.ConversationID, &g.StartedBy, &g.Media, &g.CreatedAt, &g.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrCallNotFound
		}
		return nil, fmt.Errorf("ошибка получения группового звонка: %w", err)
	}
	return g, nil
}

// EndGroupCall завершает групповой звонок. false: уже был завершён.
func (r *Repository) EndGroupCall(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE group_calls SET ended_at = NOW() WHERE id = $1 AND ended_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("ошибка завершения группового звонка: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// --- Записи ---

// InsertRecording сохраняет метаданные загруженной записи.
func (r *Repository) InsertRecording(ctx context.Context, rec *CallRecording) error {
	rec.ID = uuid.New()
	err := r.db.QueryRow(ctx, `
		INSERT INTO call_recordings (id, call_id, group_call_id, recorded_by, file_url, public_id,
		                             duration_seconds, file_size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, rec.ID, rec.CallID, rec.GroupCallID, rec.RecordedBy, rec.FileURL, rec.PublicID,
		rec.DurationSeconds, rec.FileSizeBytes,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи звонка: %w", err)
	}
	return nil
}

// ListRecordings возвращает записи звонка.
func (r *Repository) ListRecordings(ctx context.Context, target Target) ([]*CallRecording, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, call_id, group_call_id, recorded_by, file_url, public_id,
		       duration_seconds, file_size_bytes, created_at
		FROM call_recordings
		WHERE call_id = $1 OR group_call_id = $1
		ORDER BY created_at
	`, target.ID())
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей: %w", err)
	}
	defer rows.Close()

	var out []*CallRecording
	for rows.Next() {
		rec := &CallRecording{}
		if err := rows.Scan(&rec.ID, &rec.CallID, &rec.GroupCallID, &rec.RecordedBy, &rec.FileURL,
			&rec.PublicID, &rec.DurationSeconds, &rec.FileSizeBytes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
