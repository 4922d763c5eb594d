package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
	"github.com/nicolasparada/go-db"
	"github.com/nicolasparada/go-errs"

	"github.com/parleyhq/parley/id"
	"github.com/parleyhq/parley/types"
)

// conversationColumns embeds participants and the denormalized last message
// summary as JSON so a single query serves the conversation list.
const conversationColumns = `
	conversations.id,
	conversations.created_at,
	(
		SELECT json_agg(json_build_object(
			'id', participants.user_id,
			'name', participants.name,
			'avatar', participants.avatar
		))
		FROM participants
		WHERE participants.conversation_id = conversations.id
	) AS participants,
	(
		SELECT json_build_object(
			'id', last.id,
			'senderId', last.sender_id,
			'content', last.content,
			'createdAt', last.created_at,
			'read', last.read_at IS NOT NULL
		)
		FROM messages AS last
		WHERE last.conversation_id = conversations.id
		ORDER BY last.created_at DESC, last.id DESC
		LIMIT 1
	) AS last_message
`

func (p *Postgres) Conversations(ctx context.Context, in types.ListConversations) ([]types.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		INNER JOIN participants AS self
			ON self.conversation_id = conversations.id
			AND self.user_id = @user_id
		ORDER BY (
			SELECT coalesce(max(m.created_at), conversations.created_at)
			FROM messages AS m
			WHERE m.conversation_id = conversations.id
		) DESC
	`

	rows, err := p.db.Query(ctx, query, pgx.StrictNamedArgs{
		"user_id": in.LoggedInUserID(),
	})
	if err != nil {
		return nil, fmt.Errorf("sql select conversations: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Conversation])
	if err != nil {
		return nil, fmt.Errorf("sql collect conversations: %w", err)
	}

	return out, nil
}

func (p *Postgres) Conversation(ctx context.Context, conversationID, userID string) (types.Conversation, error) {
	var out types.Conversation

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		INNER JOIN participants AS self
			ON self.conversation_id = conversations.id
			AND self.user_id = @user_id
		WHERE conversations.id = @conversation_id
	`

	rows, err := p.db.Query(ctx, query, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation: %w", err)
	}

	return out, nil
}

func (p *Postgres) ConversationFromParticipants(ctx context.Context, in types.RetrieveConversationFromParticipants) (types.Conversation, error) {
	var out types.Conversation

	// Nothing stops the same pair from opening a second conversation;
	// resolve to the newest one.
	const q = `
		SELECT self.conversation_id
		FROM participants AS self
		INNER JOIN participants AS other
			ON other.conversation_id = self.conversation_id
			AND other.user_id = @other_user_id
		WHERE self.user_id = @user_id
		ORDER BY self.created_at DESC
		LIMIT 1
	`

	conversationID, err := pgxutil.SelectRow(ctx, p.db, q, []any{pgx.StrictNamedArgs{
		"user_id":       in.LoggedInUserID(),
		"other_user_id": in.OtherUserID,
	}}, pgx.RowTo[string])
	if db.IsNotFoundError(err) {
		return out, errs.NotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql select conversation from participants: %w", err)
	}

	return p.Conversation(ctx, conversationID, in.LoggedInUserID())
}

func (p *Postgres) CreateConversation(ctx context.Context, in types.CreateConversation) (types.Conversation, error) {
	var out types.Conversation
	return out, p.db.RunTx(ctx, func(ctx context.Context) error {
		created, err := p.insertConversation(ctx)
		if err != nil {
			return err
		}

		if err := p.insertParticipants(ctx, created.ID, in); err != nil {
			return err
		}

		createMessage := types.CreateMessage{
			ConversationID: created.ID,
			Content:        in.Content,
		}
		createMessage.SetLoggedInUserID(in.LoggedInUser().ID)
		if _, err := p.CreateMessage(ctx, createMessage); err != nil {
			return err
		}

		out, err = p.Conversation(ctx, created.ID, in.LoggedInUser().ID)
		return err
	})
}

func (p *Postgres) insertConversation(ctx context.Context) (types.Created, error) {
	var out types.Created

	const q = `
		INSERT INTO conversations (id)
		VALUES (@conversation_id)
		RETURNING id, created_at
	`

	rows, err := p.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": id.Generate(),
	})
	if err != nil {
		return out, fmt.Errorf("sql insert conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Created])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted conversation: %w", err)
	}

	return out, nil
}

func (p *Postgres) insertParticipants(ctx context.Context, conversationID string, in types.CreateConversation) error {
	const q = `
		INSERT INTO participants (conversation_id, user_id, name, avatar)
		VALUES (@conversation_id, @user_id, @user_name, @user_avatar)
			 , (@conversation_id, @other_user_id, @other_name, @other_avatar)
	`

	self := in.LoggedInUser()
	_, err := p.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         self.ID,
		"user_name":       self.Name,
		"user_avatar":     self.Avatar,
		"other_user_id":   in.Other.ID,
		"other_name":      in.Other.Name,
		"other_avatar":    in.Other.Avatar,
	})
	if err != nil {
		return fmt.Errorf("sql insert participants: %w", err)
	}

	return nil
}

// MarkConversationRead is idempotent: re-running it flips nothing new.
func (p *Postgres) MarkConversationRead(ctx context.Context, in types.MarkConversationRead) error {
	return p.db.RunTx(ctx, func(ctx context.Context) error {
		const markMessages = `
			UPDATE messages
			SET read_at = now()
			WHERE conversation_id = @conversation_id
				AND sender_id != @user_id
				AND read_at IS NULL
		`

		_, err := p.db.Exec(ctx, markMessages, pgx.StrictNamedArgs{
			"conversation_id": in.ConversationID,
			"user_id":         in.LoggedInUserID(),
		})
		if err != nil {
			return fmt.Errorf("sql mark messages read: %w", err)
		}

		const markParticipant = `
			UPDATE participants
			SET has_unread = false,
				last_read_at = now()
			WHERE conversation_id = @conversation_id
				AND user_id = @user_id
		`

		tag, err := p.db.Exec(ctx, markParticipant, pgx.StrictNamedArgs{
			"conversation_id": in.ConversationID,
			"user_id":         in.LoggedInUserID(),
		})
		if err != nil {
			return fmt.Errorf("sql mark participant read: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return errs.NotFoundError("conversation not found")
		}

		return nil
	})
}

func (p *Postgres) UnreadCount(ctx context.Context, userID string) (types.UnreadCount, error) {
	var out types.UnreadCount

	const q = `
		SELECT count(*)
		FROM messages
		INNER JOIN participants
			ON participants.conversation_id = messages.conversation_id
			AND participants.user_id = @user_id
		WHERE messages.sender_id != @user_id
			AND messages.read_at IS NULL
	`

	count, err := pgxutil.SelectRow(ctx, p.db, q, []any{pgx.StrictNamedArgs{
		"user_id": userID,
	}}, pgx.RowTo[int])
	if err != nil {
		return out, fmt.Errorf("sql select unread count: %w", err)
	}

	out.Count = count
	return out, nil
}
