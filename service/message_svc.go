package service

import (
	"context"

	"github.com/nicolasparada/go-errs"

	"github.com/parleyhq/parley/auth"
	"github.com/parleyhq/parley/types"
)

func (svc *Service) Messages(ctx context.Context, in types.ListMessages) ([]types.Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	identity, loggedIn := auth.IdentityFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	in.SetLoggedInUserID(identity.ID)

	return svc.Postgres.Messages(ctx, in)
}

// CreateMessage persists the message, then pushes it out in the background.
// Room members get it as receive-message; the other participants also get a
// direct new-message so their list view and unread badge update even when
// they are not looking at the conversation.
func (svc *Service) CreateMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message

	if err := in.Validate(); err != nil {
		return out, err
	}

	identity, loggedIn := auth.IdentityFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(identity.ID)

	out, err := svc.Postgres.CreateMessage(ctx, in)
	if err != nil {
		return out, err
	}

	svc.background(func(ctx context.Context) error {
		conversation, err := svc.Postgres.Conversation(ctx, out.ConversationID, identity.ID)
		if err != nil {
			return err
		}

		svc.broadcastNewMessage(conversation.Participants, out)
		return nil
	})

	return out, nil
}

func (svc *Service) broadcastNewMessage(participants []types.Participant, msg types.Message) {
	roomEv, err := types.NewEvent(types.EventReceiveMessage, types.MessageEvent{Message: msg})
	if err != nil {
		select {
		case svc.errs <- err:
		default:
		}
		return
	}

	svc.Broadcaster.ToRoom(msg.ConversationID, roomEv)

	userEv, err := types.NewEvent(types.EventNewMessage, types.MessageEvent{Message: msg})
	if err != nil {
		select {
		case svc.errs <- err:
		default:
		}
		return
	}

	for _, p := range participants {
		if p.ID == msg.SenderID {
			continue
		}
		svc.Broadcaster.ToUser(p.ID, userEv)
	}
}
