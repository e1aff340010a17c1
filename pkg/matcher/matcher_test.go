package matcher

import (
	"context"
	"testing"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

func intp(i int) *int { return &i }

type fakeClient struct {
	calls   int
	matches []*int
}

func (f *fakeClient) Match(ctx context.Context, prompt string) (llmResponse, error) {
	f.calls++
	return llmResponse{Reasoning: "fake", Matches: f.matches}, nil
}

func TestDeterministicMatchOverlap(t *testing.T) {
	findings := []model.Finding{
		{File: "a.py", LineStart: 10, LineEnd: 12},
		{File: "a.py", LineStart: 50, LineEnd: 55},
	}
	expected := []model.ExpectedFinding{
		{File: "a.py", LineStart: 11, LineEnd: 11},
	}
	matches := DeterministicMatch(findings, expected)
	if matches[0] == nil || *matches[0] != 0 {
		t.Errorf("expected findings[0] matched to 0, got %v", matches[0])
	}
	if matches[1] != nil {
		t.Errorf("expected findings[1] unmatched, got %v", matches[1])
	}
}

func TestDeterministicMatchFirstMatchWins(t *testing.T) {
	findings := []model.Finding{{File: "a.py", LineStart: 10, LineEnd: 12}}
	expected := []model.ExpectedFinding{
		{File: "a.py", LineStart: 9, LineEnd: 13},
		{File: "a.py", LineStart: 11, LineEnd: 11},
	}
	matches := DeterministicMatch(findings, expected)
	if matches[0] == nil || *matches[0] != 0 {
		t.Errorf("expected tie-break to earliest expected index 0, got %v", matches[0])
	}
}

func TestMatchSkipsLLMWhenAllDeterministic(t *testing.T) {
	findings := []model.Finding{{File: "a.py", LineStart: 10, LineEnd: 12}}
	expected := []model.ExpectedFinding{{File: "a.py", LineStart: 11, LineEnd: 11}}
	client := &fakeClient{}

	matches, err := Match(context.Background(), client, findings, expected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("expected 0 LLM calls, got %d", client.calls)
	}
	if matches[0] == nil || *matches[0] != 0 {
		t.Errorf("unexpected matches: %v", matches)
	}
}

func TestMatchSkipsLLMWhenNoFindings(t *testing.T) {
	client := &fakeClient{}
	matches, err := Match(context.Background(), client, nil, []model.ExpectedFinding{{File: "a.py"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}
	if client.calls != 0 {
		t.Errorf("expected 0 LLM calls, got %d", client.calls)
	}
}

func TestMatchFallsBackToLLMForResiduals(t *testing.T) {
	findings := []model.Finding{
		{File: "a.py", LineStart: 10, LineEnd: 12},
		{File: "b.py", LineStart: 1, LineEnd: 1},
	}
	expected := []model.ExpectedFinding{
		{File: "a.py", LineStart: 11, LineEnd: 11},
		{File: "b.py", LineStart: 1, LineEnd: 1},
	}
	// Force findings[1] to miss deterministically by using a non-overlapping
	// expected range, then let the LLM fallback claim it.
	expected[1].LineStart, expected[1].LineEnd = 99, 99

	client := &fakeClient{matches: []*int{intp(1)}}
	matches, err := Match(context.Background(), client, findings, expected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 LLM call, got %d", client.calls)
	}
	if matches[0] == nil || *matches[0] != 0 {
		t.Errorf("expected findings[0] matched deterministically to 0, got %v", matches[0])
	}
	if matches[1] == nil || *matches[1] != 1 {
		t.Errorf("expected findings[1] matched via LLM to 1, got %v", matches[1])
	}
}
