package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDraftMessageFinalizesOnce(t *testing.T) {
	draft := NewDraftMessage("msg_1", "t1", 100)
	draft.Append("Hel")
	if got := draft.Append("lo").Content; got != "Hello" {
		t.Fatalf("unexpected accumulated content: %q", got)
	}

	final, err := draft.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if _, err := draft.Finalize(); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}

	draft.Append(" world")
	draft.Replace("changed")
	if final.Message().Content != "Hello" || draft.Snapshot().Content != "Hello" {
		t.Fatalf("finalized content changed: %q", final.Message().Content)
	}
}

func TestFinalizedMessageReturnsCopies(t *testing.T) {
	final := FinalizedMessage{msg: Message{ID: "m1", Metadata: map[string]string{"k": "v"}}}
	m := final.Message()
	m.Metadata["k"] = "mutated"
	m.Content = "mutated"

	if final.Message().Metadata["k"] != "v" || final.Message().Content != "" {
		t.Fatalf("finalized message was mutated: %+v", final.Message())
	}

	raw, err := json.Marshal(final)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.ID != "m1" {
		t.Fatalf("unexpected encoding %s: %v", raw, err)
	}
}

func TestValidationErrorWrapsSentinel(t *testing.T) {
	err := Required("threadId")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "threadId" {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestActionValid(t *testing.T) {
	if !ActionRunAssistant.Valid() {
		t.Fatal("RUN_ASSISTANT should be valid")
	}
	if Action("DROP_TABLES").Valid() {
		t.Fatal("unknown action should be invalid")
	}
}
