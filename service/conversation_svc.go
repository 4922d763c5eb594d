package service

import (
	"context"

	"github.com/nicolasparada/go-errs"

	"github.com/parleyhq/parley/auth"
	"github.com/parleyhq/parley/types"
)

func (svc *Service) Conversations(ctx context.Context, in types.ListConversations) ([]types.Conversation, error) {
	identity, loggedIn := auth.IdentityFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	in.SetLoggedInUserID(identity.ID)

	return svc.Postgres.Conversations(ctx, in)
}

func (svc *Service) ConversationFromParticipants(ctx context.Context, in types.RetrieveConversationFromParticipants) (types.Conversation, error) {
	var out types.Conversation

	if err := in.Validate(); err != nil {
		return out, err
	}

	identity, loggedIn := auth.IdentityFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(identity.ID)

	return svc.Postgres.ConversationFromParticipants(ctx, in)
}

// CreateConversation opens a conversation with another user, seeded with an
// initial message. The new message is pushed to the other side as if it had
// arrived in an existing conversation.
func (svc *Service) CreateConversation(ctx context.Context, in types.CreateConversation) (types.Conversation, error) {
	var out types.Conversation

	if err := in.Validate(); err != nil {
		return out, err
	}

	identity, loggedIn := auth.IdentityFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUser(identity)

	out, err := svc.Postgres.CreateConversation(ctx, in)
	if err != nil {
		return out, err
	}

	if out.LastMessage != nil {
		msg := types.Message{
			ID:             out.LastMessage.ID,
			ConversationID: out.ID,
			SenderID:       identity.ID,
			Content:        out.LastMessage.Content,
			CreatedAt:      out.LastMessage.CreatedAt,
		}
		svc.broadcastNewMessage(out.Participants, msg)
	}

	return out, nil
}

// MarkConversationRead flips every unread incoming message in the
// conversation and fans the receipt out so senders can repaint their
// checkmarks.
func (svc *Service) MarkConversationRead(ctx context.Context, in types.MarkConversationRead) error {
	if err := in.Validate(); err != nil {
		return err
	}

	identity, loggedIn := auth.IdentityFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	in.SetLoggedInUserID(identity.ID)

	if err := svc.Postgres.MarkConversationRead(ctx, in); err != nil {
		return err
	}

	svc.background(func(ctx context.Context) error {
		conversation, err := svc.Postgres.Conversation(ctx, in.ConversationID, identity.ID)
		if err != nil {
			return err
		}

		participantIDs := make([]string, len(conversation.Participants))
		for i, p := range conversation.Participants {
			participantIDs[i] = p.ID
		}

		ev, err := types.NewEvent(types.EventMessagesRead, types.ReadEvent{
			ConversationID: in.ConversationID,
			UserID:         identity.ID,
			ParticipantIDs: participantIDs,
		})
		if err != nil {
			return err
		}

		svc.Broadcaster.ToRoom(in.ConversationID, ev)
		for _, p := range conversation.Others(identity.ID) {
			svc.Broadcaster.ToUser(p.ID, ev)
		}
		return nil
	})

	return nil
}

func (svc *Service) UnreadCount(ctx context.Context) (types.UnreadCount, error) {
	var out types.UnreadCount

	identity, loggedIn := auth.IdentityFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	return svc.Postgres.UnreadCount(ctx, identity.ID)
}
