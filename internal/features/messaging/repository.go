// Package messaging: repository.go работает с беседами, сообщениями,
// отметками доставки и реакциями.
package messaging

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

// Repository предоставляет методы для работы с сообщениями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий сообщений.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// FindOrCreateDirect возвращает личную беседу двух пользователей, создавая её при первом обращении.
// Advisory lock на пару не даёт двум запросам создать две беседы.
func (r *Repository) FindOrCreateDirect(ctx context.Context, a, b uuid.UUID) (uuid.UUID, bool, error) {
	lo, hi := a, b
	if lo.String() > hi.String() {
		lo, hi = hi, lo
	}

	var id uuid.UUID
	created := false
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lo.String()+hi.String()); err != nil {
			return fmt.Errorf("ошибка блокировки беседы: %w", err)
		}
		err := tx.QueryRow(ctx, `
			SELECT c.id
			FROM conversations c
			JOIN conversation_participants pa ON pa.conversation_id = c.id AND pa.user_id = $1
			JOIN conversation_participants pb ON pb.conversation_id = c.id AND pb.user_id = $2
			WHERE NOT c.is_group
			LIMIT 1
		`, lo, hi).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("ошибка поиска беседы: %w", err)
		}

		id = uuid.New()
		created = true
		return r.insertConversation(ctx, tx, id, false, "", a, []uuid.UUID{a, b})
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, created, nil
}

// CreateGroup создаёт групповую беседу.
func (r *Repository) CreateGroup(ctx context.Context, creator uuid.UUID, title string, members []uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return r.insertConversation(ctx, tx, id, true, title, creator, members)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repository) insertConversation(ctx context.Context, tx pgx.Tx, id uuid.UUID, group bool, title string, creator uuid.UUID, members []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO conversations (id, is_group, title, created_by) VALUES ($1, $2, $3, $4)
	`, id, group, title, creator); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("ошибка создания беседы: %w", err)
	}
	for _, m := range members {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, id, m); err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return common.ErrUserNotFound
			}
			return fmt.Errorf("ошибка добавления участника: %w", err)
		}
	}
	return nil
}

// IsParticipant проверяет участие пользователя в беседе.
func (r *Repository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)
	`, conversationID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки участника: %w", err)
	}
	return ok, nil
}

// Participants возвращает участников беседы.
func (r *Repository) Participants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения участников: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования участника: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListForUser возвращает беседы пользователя с последним сообщением и числом непрочитанных.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.is_group, c.title, c.created_by, c.created_at, c.updated_at,
		       lm.content, lm.created_at,
		       (SELECT COUNT(*) FROM message_receipts r
		          JOIN messages m ON m.id = r.message_id
		         WHERE m.conversation_id = c.id AND r.user_id = $1 AND r.seen_at IS NULL)
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = $1
		LEFT JOIN LATERAL (
			SELECT content, created_at FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC LIMIT 1
		) lm ON TRUE
		ORDER BY COALESCE(lm.created_at, c.created_at) DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бесед: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(
			&c.ID, &c.IsGroup, &c.Title, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
			&c.LastMessage, &c.LastMessageAt, &c.Unread,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования беседы: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range out {
		if c.Participants, err = r.Participants(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InsertMessage сохраняет сообщение и создаёт отметку для каждого получателя.
func (r *Repository) InsertMessage(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, m.ID, m.ConversationID, m.SenderID, m.Content).Scan(&m.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка сохранения сообщения: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO message_receipts (message_id, user_id)
			SELECT $1, user_id FROM conversation_participants
			WHERE conversation_id = $2 AND user_id <> $3
		`, m.ID, m.ConversationID, m.SenderID); err != nil {
			return fmt.Errorf("ошибка создания отметок: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, m.ConversationID); err != nil {
			return fmt.Errorf("ошибка обновления беседы: %w", err)
		}
		m.Status = StatusSent
		return nil
	})
}

// ListMessages возвращает сообщения беседы (новые сначала) со статусом для отправителя.
func (r *Repository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int, before *time.Time) ([]*Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = $1 AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сообщений: %w", err)
	}
	defer rows.Close()

	var out []*Message
	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		out = append(out, &m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	receipts, err := r.receiptsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		m.Status = AggregateStatus(receipts[m.ID])
	}
	return out, nil
}

func (r *Repository) receiptsFor(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]Receipt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT message_id, delivered_at, seen_at FROM message_receipts WHERE message_id = ANY($1)
	`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения отметок: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]Receipt, len(messageIDs))
	for rows.Next() {
		var id uuid.UUID
		var rc Receipt
		if err := rows.Scan(&id, &rc.DeliveredAt, &rc.SeenAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования отметки: %w", err)
		}
		out[id] = append(out[id], rc)
	}
	return out, rows.Err()
}

// MessageRef возвращает беседу и автора сообщения.
func (r *Repository) MessageRef(ctx context.Context, messageID uuid.UUID) (conversationID, senderID uuid.UUID, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT conversation_id, sender_id FROM messages WHERE id = $1`, messageID,
	).Scan(&conversationID, &senderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, common.ErrMessageNotFound
		}
		return uuid.Nil, uuid.Nil, fmt.Errorf("ошибка чтения сообщения: %w", err)
	}
	return conversationID, senderID, nil
}

// MarkDelivered ставит отметку доставки один раз. false: уже стояла
// или сообщение уже просмотрено.
func (r *Repository) MarkDelivered(ctx context.Context, messageID, recipient uuid.UUID) (bool, time.Time, error) {
	var at time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE message_receipts SET delivered_at = NOW()
		WHERE message_id = $1 AND user_id = $2 AND delivered_at IS NULL AND seen_at IS NULL
		RETURNING delivered_at
	`, messageID, recipient).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, fmt.Errorf("ошибка отметки доставки: %w", err)
	}
	return true, at, nil
}

// MarkConversationSeen отмечает просмотренными все чужие сообщения беседы
// и двигает last_read_at участника. Одна транзакция.
func (r *Repository) MarkConversationSeen(ctx context.Context, conversationID, viewer uuid.UUID) ([]uuid.UUID, time.Time, error) {
	var ids []uuid.UUID
	var at time.Time
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE conversation_participants SET last_read_at = NOW()
			WHERE conversation_id = $1 AND user_id = $2
			RETURNING last_read_at
		`, conversationID, viewer).Scan(&at)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ErrNotParticipant
			}
			return fmt.Errorf("ошибка обновления last_read_at: %w", err)
		}

		rows, err := tx.Query(ctx, `
			UPDATE message_receipts r SET seen_at = NOW()
			FROM messages m
			WHERE r.message_id = m.id
			  AND m.conversation_id = $1
			  AND r.user_id = $2
			  AND m.sender_id <> $2
			  AND r.seen_at IS NULL
			RETURNING r.message_id
		`, conversationID, viewer)
		if err != nil {
			return fmt.Errorf("ошибка отметки просмотра: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("ошибка сканирования отметки: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return ids, at, nil
}

// DeleteReaction снимает реакцию. false: её не было.
func (r *Repository) DeleteReaction(ctx context.Context, q postgres.Querier, messageID, userID uuid.UUID, emoji string) (bool, error) {
	tag, err := q.Exec(ctx, `
		DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3
	`, messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления реакции: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertReaction ставит реакцию. Дубликат от двойного клика: не ошибка.
func (r *Repository) InsertReaction(ctx context.Context, q postgres.Querier, messageID, userID uuid.UUID, emoji string) error {
	if _, err := q.Exec(ctx, `
		INSERT INTO message_reactions (id, message_id, user_id, emoji)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`, uuid.New(), messageID, userID, emoji); err != nil {
		return fmt.Errorf("ошибка записи реакции: %w", err)
	}
	return nil
}

// Pool нужен сервису для транзакции реакции.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// ListReactions возвращает реакции сообщения, сгруппированные по эмодзи.
func (r *Repository) ListReactions(ctx context.Context, messageID uuid.UUID) ([]ReactionGroup, error) {
	rows, err := r.db.Query(ctx, `
		SELECT emoji, array_agg(user_id::text ORDER BY created_at)
		FROM message_reactions
		WHERE message_id = $1
		GROUP BY emoji
		ORDER BY MIN(created_at)
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения реакций: %w", err)
	}
	defer rows.Close()

	var out []ReactionGroup
	for rows.Next() {
		var g ReactionGroup
		var users []string
		if err := rows.Scan(&g.Emoji, &users); err != nil {
			return nil, fmt.Errorf("ошибка сканирования реакций: %w", err)
		}
		for _, u := range users {
			id, err := uuid.Parse(u)
			if err != nil {
				return nil, fmt.Errorf("некорректный user_id реакции: %w", err)
			}
			g.Users = append(g.Users, id)
		}
		g.Count = len(g.Users)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Unread: непрочитанные сообщения пользователя по беседам.
func (r *Repository) Unread(ctx context.Context, userID uuid.UUID) (*UnreadCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.conversation_id, COUNT(*)
		FROM message_receipts r
		JOIN messages m ON m.id = r.message_id
		WHERE r.user_id = $1 AND r.seen_at IS NULL
		GROUP BY m.conversation_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта непрочитанных: %w", err)
	}
	defer rows.Close()

	out := &UnreadCount{ByConversation: map[uuid.UUID]int{}}
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования непрочитанных: %w", err)
		}
		out.ByConversation[id] = n
		out.Total += n
	}
	return out, rows.Err()
}
