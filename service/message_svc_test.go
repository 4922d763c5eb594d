package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nicolasparada/go-errs"

	"github.com/parleyhq/parley/types"
)

func messageContents(msgs []types.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestService_Messages(t *testing.T) {
	svc, _ := testService(t)

	ctx, _ := asUser("alice")
	bobCtx, bob := asUser("bob")

	conversation := createTestConversation(t, svc, ctx, bob, "one")
	for _, content := range []string{"two", "three", "four", "five"} {
		_, err := svc.CreateMessage(ctx, types.CreateMessage{
			ConversationID: conversation.ID,
			Content:        content,
		})
		if err != nil {
			t.Fatalf("create message %q: %v", content, err)
		}
	}

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := svc.Messages(context.Background(), types.ListMessages{
			ConversationID: conversation.ID,
		})
		if !errors.Is(err, errs.Unauthenticated) {
			t.Fatalf("want unauthenticated, got %v", err)
		}
	})

	t.Run("newest_first_pages", func(t *testing.T) {
		page, err := svc.Messages(bobCtx, types.ListMessages{
			ConversationID: conversation.ID,
			Page:           1,
			Limit:          2,
		})
		if err != nil {
			t.Fatalf("list messages page 1: %v", err)
		}
		if got, want := messageContents(page), []string{"five", "four"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("want page 1 %v, got %v", want, got)
		}

		page, err = svc.Messages(bobCtx, types.ListMessages{
			ConversationID: conversation.ID,
			Page:           2,
			Limit:          2,
		})
		if err != nil {
			t.Fatalf("list messages page 2: %v", err)
		}
		if got, want := messageContents(page), []string{"three", "two"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("want page 2 %v, got %v", want, got)
		}
	})

	t.Run("short_final_page", func(t *testing.T) {
		page, err := svc.Messages(bobCtx, types.ListMessages{
			ConversationID: conversation.ID,
			Page:           3,
			Limit:          2,
		})
		if err != nil {
			t.Fatalf("list messages page 3: %v", err)
		}
		if got, want := messageContents(page), []string{"one"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("want short final page %v, got %v", want, got)
		}
	})

	t.Run("empty_past_the_end", func(t *testing.T) {
		page, err := svc.Messages(bobCtx, types.ListMessages{
			ConversationID: conversation.ID,
			Page:           4,
			Limit:          2,
		})
		if err != nil {
			t.Fatalf("list messages page 4: %v", err)
		}
		if len(page) != 0 {
			t.Fatalf("want empty page past the end, got %v", messageContents(page))
		}
	})
}

func TestService_Messages_NotParticipant(t *testing.T) {
	svc, _ := testService(t)

	aliceCtx, _ := asUser("alice")
	_, bob := asUser("bob")
	strangerCtx, _ := asUser("mallory")

	conversation := createTestConversation(t, svc, aliceCtx, bob, "private")

	_, err := svc.Messages(strangerCtx, types.ListMessages{
		ConversationID: conversation.ID,
	})
	if !errors.Is(err, errs.NotFound) {
		t.Fatalf("want not found for non-participant, got %v", err)
	}
}
