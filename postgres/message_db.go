package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
	"github.com/nicolasparada/go-errs"

	"github.com/parleyhq/parley/id"
	"github.com/parleyhq/parley/types"
)

// Messages returns one page of a conversation's log, newest first.
// Page 1 is the most recent messages; clients reverse and prepend.
func (p *Postgres) Messages(ctx context.Context, in types.ListMessages) ([]types.Message, error) {
	if err := p.ensureParticipant(ctx, in.ConversationID, in.LoggedInUserID()); err != nil {
		return nil, err
	}

	const q = `
		SELECT messages.id,
			messages.conversation_id,
			messages.sender_id,
			messages.content,
			messages.created_at,
			messages.read_at IS NOT NULL AS read
		FROM messages
		WHERE messages.conversation_id = @conversation_id
		ORDER BY messages.created_at DESC, messages.id DESC
		LIMIT @limit OFFSET @offset
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID,
		"limit":           in.Limit,
		"offset":          (in.Page - 1) * in.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("sql select messages: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return nil, fmt.Errorf("sql collect messages: %w", err)
	}

	return out, nil
}

func (p *Postgres) CreateMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message
	return out, p.db.RunTx(ctx, func(ctx context.Context) error {
		if err := p.ensureParticipant(ctx, in.ConversationID, in.LoggedInUserID()); err != nil {
			return err
		}

		msg, err := p.insertMessage(ctx, in)
		if err != nil {
			return err
		}

		if err := p.markUnreadForOthers(ctx, in.ConversationID, in.LoggedInUserID()); err != nil {
			return err
		}

		out = msg
		return nil
	})
}

func (p *Postgres) insertMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message

	const q = `
		INSERT INTO messages (id, conversation_id, sender_id, content)
		VALUES (@message_id, @conversation_id, @sender_id, @content)
		RETURNING id, conversation_id, sender_id, content, created_at, read_at IS NOT NULL AS read
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"message_id":      id.Generate(),
		"conversation_id": in.ConversationID,
		"sender_id":       in.LoggedInUserID(),
		"content":         in.Content,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert message: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted message: %w", err)
	}

	return out, nil
}

func (p *Postgres) markUnreadForOthers(ctx context.Context, conversationID, senderID string) error {
	const q = `
		UPDATE participants
		SET has_unread = true
		WHERE conversation_id = @conversation_id
			AND user_id != @sender_id
	`

	_, err := p.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"sender_id":       senderID,
	})
	if err != nil {
		return fmt.Errorf("sql mark recipients unread: %w", err)
	}

	return nil
}

func (p *Postgres) ensureParticipant(ctx context.Context, conversationID, userID string) error {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM participants
			WHERE conversation_id = @conversation_id
				AND user_id = @user_id
		)
	`

	exists, err := pgxutil.SelectRow(ctx, p.db, q, []any{pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	}}, pgx.RowTo[bool])
	if err != nil {
		return fmt.Errorf("sql select participant exists: %w", err)
	}

	if !exists {
		return errs.NotFoundError("conversation not found")
	}

	return nil
}
