package auth

import (
	"context"
	"testing"
)

func TestWithAuthRoundTrip(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7, FamilyID: 3, SessionID: 11})

	ac, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected auth context")
	}
	if ac.UserID != 7 || ac.FamilyID != 3 || ac.SessionID != 11 {
		t.Errorf("unexpected auth context: %+v", ac)
	}
}

func TestAccessorsOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	if UserID(ctx) != 0 {
		t.Error("UserID on empty context should be 0")
	}
	if FamilyID(ctx) != 0 {
		t.Error("FamilyID on empty context should be 0")
	}
	if _, ok := FromContext(ctx); ok {
		t.Error("FromContext on empty context should report absence")
	}
}
