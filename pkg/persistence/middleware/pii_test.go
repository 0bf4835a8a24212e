package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	// Setup
	underlyingStore := NewMockStore()
	// Mask steps and fields containing "password" or "ssn"
	mw := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "pii-session"
	state := stateWithAnswer(sessionID, "username", domain.String("jdoe"))

	password := domain.NewAnswerResult("user_password", domain.AnswerType{Kind: domain.AnswerString})
	secret := domain.String("secret123")
	password.SetAnswer(&secret)
	state.Result.AppendOrReplace(password)

	details := domain.NewAnswerResult("details", domain.AnswerType{Kind: domain.AnswerObject})
	obj := domain.Object(map[string]domain.Value{
		"address":    domain.String("123 St"),
		"ssn_number": domain.String("999-99-9999"),
	})
	details.SetAnswer(&obj)

	section := domain.NewCollectionResult("profile")
	section.AppendOrReplace(details)
	state.Result.AppendOrReplace(section)

	// 1. Save
	if err := secureStore.Save(ctx, sessionID, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify In-Memory State is NOT MODIFIED (Immutability check)
	if got := answerOf(t, state, "user_password"); !got.Equal(secret) {
		t.Error("Middleware modified original state in memory!")
	}

	// 2. Load from Underlying Store (Should be masked)
	storedState, err := underlyingStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}

	// Check masking
	if got := answerOf(t, storedState, "username"); !got.Equal(domain.String("jdoe")) {
		t.Error("Username shouldn't be masked")
	}
	if got := answerOf(t, storedState, "user_password"); !got.Equal(domain.String(middleware.Mask)) {
		t.Errorf("Password should be masked, got: %v", got)
	}

	r, _ := storedState.Result.Find("profile")
	nested, _ := r.(*domain.CollectionResult).Find("details")
	masked := *nested.(*domain.AnswerResult).Answer()
	if v, _ := masked.Field("ssn_number"); !v.Equal(domain.String(middleware.Mask)) {
		t.Errorf("Nested SSN should be masked, got: %v", v)
	}
	if v, _ := masked.Field("address"); !v.Equal(domain.String("123 St")) {
		t.Errorf("Address shouldn't be masked, got: %v", v)
	}
}
