package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"versescope/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUpstream, "analysis", "complete", "http 502", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"analysis", "complete", "http 502"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrConfiguration, "analysis", "", "api key required", nil), services.KindConfiguration},
		{services.Wrap(services.ErrNotFound, "lookup", "", "", nil), services.KindNotFound},
		{services.Wrap(services.ErrUpstream, "analysis", "", "", nil), services.KindUpstream},
		{services.Wrap(services.ErrParse, "analysis", "", "", nil), services.KindParse},
		{services.Wrap(services.ErrTransient, "lookup", "", "", nil), services.KindTransient},
		{services.Wrap(services.ErrValidation, "lookup", "", "", nil), services.KindValidation},
		{fmt.Errorf("lookup: %w", context.Canceled), services.KindCanceled},
		{errors.New("mystery"), services.KindUnknown},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestUserMessageIsKindSpecific(t *testing.T) {
	if msg := services.UserMessage(nil); msg != "" {
		t.Fatalf("expected empty message for nil error, got %q", msg)
	}
	notFound := services.UserMessage(services.Wrap(services.ErrNotFound, "lookup", "", "", nil))
	if notFound != "Verse not found. Please check your verse input." {
		t.Fatalf("unexpected not-found message %q", notFound)
	}
	secret := services.Wrap(services.ErrUpstream, "analysis", "", "body mentions sk-secret", nil)
	if strings.Contains(services.UserMessage(secret), "sk-secret") {
		t.Fatal("user message must not echo error details")
	}
}
