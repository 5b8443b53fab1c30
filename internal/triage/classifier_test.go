package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int

	lastSystem string
	lastPrompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestAnalyzeEmbedsTicketInPrompt(t *testing.T) {
	llm := &fakeCompleter{response: `{"summary":"s","priority":"low","helpfulNotes":"n","relatedSkills":[]}`}
	c := NewClassifier(llm, 0)
	if _, err := c.Analyze(context.Background(), "VPN drops", "Tunnel resets every hour"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(llm.lastPrompt, "VPN drops") || !strings.Contains(llm.lastPrompt, "Tunnel resets every hour") {
		t.Errorf("prompt missing ticket fields:\n%s", llm.lastPrompt)
	}
	if !strings.Contains(llm.lastSystem, "raw JSON") {
		t.Errorf("system instruction lost the JSON-only contract")
	}
	if llm.calls != 1 {
		t.Errorf("calls = %d, want exactly 1 (no internal retry)", llm.calls)
	}
}

func TestAnalyzeWrapsTransportFailure(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("connection refused")}
	c := NewClassifier(llm, 0)
	_, err := c.Analyze(context.Background(), "t", "d")
	var cerr *ClassificationError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ClassificationError", err)
	}
	if !errors.Is(err, llm.err) {
		t.Errorf("error chain lost the transport cause: %v", err)
	}
}

func TestAnalyzeAppliesTimeout(t *testing.T) {
	slow := completerFunc(func(ctx context.Context, system, prompt string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "", nil
		}
	})
	c := NewClassifier(slow, 10*time.Millisecond)
	start := time.Now()
	_, err := c.Analyze(context.Background(), "t", "d")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Analyze took %v, timeout not applied", elapsed)
	}
}

type completerFunc func(ctx context.Context, system, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}
