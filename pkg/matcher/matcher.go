// Package matcher maps actual findings to expected-finding indices: first
// deterministically by file + overlapping line range, then via an LLM
// fallback for any residuals.
package matcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

// Client issues the Stage 2 LLM fallback request. The concrete
// implementation wraps anthropic-sdk-go; tests substitute a fake.
type Client interface {
	Match(ctx context.Context, prompt string) (llmResponse, error)
}

type llmResponse struct {
	Reasoning string
	Matches   []*int
}

// AnthropicClient implements Client against the Anthropic Messages API,
// forcing a tool-use response conforming to {reasoning, matches}.
type AnthropicClient struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient constructs a Client from an API key and model id.
func NewAnthropicClient(apiKey string, model anthropic.Model) *AnthropicClient {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &c, model: model}
}

var matchToolSchema = anthropic.ToolInputSchemaParam{
	Type: "object",
	Properties: map[string]interface{}{
		"reasoning": map[string]interface{}{"type": "string"},
		"matches": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": []string{"integer", "null"}},
		},
	},
}

const matchToolName = "report_matches"

func (c *AnthropicClient) Match(ctx context.Context, prompt string) (llmResponse, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   2048,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        matchToolName,
					InputSchema: matchToolSchema,
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: matchToolName},
		},
	})
	if err != nil {
		return llmResponse{}, fmt.Errorf("matcher: anthropic request: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		var parsed struct {
			Reasoning string `json:"reasoning"`
			Matches   []*int `json:"matches"`
		}
		if err := json.Unmarshal(block.Input, &parsed); err != nil {
			return llmResponse{}, fmt.Errorf("matcher: decode tool input: %w", err)
		}
		return llmResponse{Reasoning: parsed.Reasoning, Matches: parsed.Matches}, nil
	}
	return llmResponse{}, fmt.Errorf("matcher: no tool_use block in response")
}

// DeterministicMatch runs Stage 1: for each actual finding in order, scan
// expected findings (skipping already-claimed indices); a match requires
// identical file paths and overlapping inclusive line ranges. First match
// wins, tie-breaking by expected-index order. The returned slice has one
// entry per finding: an expected index, or nil if unmatched.
func DeterministicMatch(findings []model.Finding, expected []model.ExpectedFinding) []*int {
	matches := make([]*int, len(findings))
	claimed := make(map[int]bool, len(expected))

	for i, f := range findings {
		for j, e := range expected {
			if claimed[j] {
				continue
			}
			if f.File == e.File && f.LineStart <= e.LineEnd && e.LineStart <= f.LineEnd {
				idx := j
				matches[i] = &idx
				claimed[j] = true
				break
			}
		}
	}
	return matches
}

// Match runs Stage 1 deterministic matching, then Stage 2 LLM fallback for
// any findings still unmatched, provided the expected list has unclaimed
// entries remaining. It skips the LLM call entirely when every actual
// matched deterministically or there are no findings.
func Match(ctx context.Context, client Client, findings []model.Finding, expected []model.ExpectedFinding) ([]*int, error) {
	matches := DeterministicMatch(findings, expected)
	if len(findings) == 0 {
		return matches, nil
	}

	claimed := make(map[int]bool, len(expected))
	var unmatchedIdx []int
	for i, m := range matches {
		if m == nil {
			unmatchedIdx = append(unmatchedIdx, i)
		} else {
			claimed[*m] = true
		}
	}
	if len(unmatchedIdx) == 0 {
		return matches, nil
	}

	var remainingExpectedIdx []int
	for j := range expected {
		if !claimed[j] {
			remainingExpectedIdx = append(remainingExpectedIdx, j)
		}
	}
	if len(remainingExpectedIdx) == 0 {
		return matches, nil
	}

	prompt := buildPrompt(findings, unmatchedIdx, expected, remainingExpectedIdx)
	resp, err := client.Match(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if len(resp.Matches) != len(unmatchedIdx) {
		return nil, fmt.Errorf("matcher: LLM returned %d matches, want %d", len(resp.Matches), len(unmatchedIdx))
	}

	for k, findingIdx := range unmatchedIdx {
		matches[findingIdx] = resp.Matches[k]
	}
	return matches, nil
}

// buildPrompt constructs the Stage 2 prompt containing only unmatched
// actuals and remaining expected entries, with original expected indices
// preserved. Keywords are deliberately omitted so the LLM reasons about
// the finding rather than pattern-matching on them.
func buildPrompt(findings []model.Finding, unmatchedIdx []int, expected []model.ExpectedFinding, remainingExpectedIdx []int) string {
	type actualEntry struct {
		Category    string `json:"category"`
		Severity    string `json:"severity"`
		File        string `json:"file"`
		LineRange   [2]int `json:"line_range"`
		Description string `json:"description"`
	}
	type expectedEntry struct {
		Index       int    `json:"index"`
		Category    string `json:"category"`
		Severity    string `json:"severity"`
		File        string `json:"file"`
		LineRange   [2]int `json:"line_range"`
		Description string `json:"description"`
	}

	actuals := make([]actualEntry, 0, len(unmatchedIdx))
	for _, i := range unmatchedIdx {
		f := findings[i]
		actuals = append(actuals, actualEntry{
			Category:    f.Category,
			Severity:    f.Severity,
			File:        f.File,
			LineRange:   [2]int{f.LineStart, f.LineEnd},
			Description: f.Description,
		})
	}

	expecteds := make([]expectedEntry, 0, len(remainingExpectedIdx))
	for _, j := range remainingExpectedIdx {
		e := expected[j]
		expecteds = append(expecteds, expectedEntry{
			Index:       j,
			Category:    e.Category,
			Severity:    e.Severity,
			File:        e.File,
			LineRange:   [2]int{e.LineStart, e.LineEnd},
			Description: e.Description,
		})
	}

	actualsJSON, _ := json.MarshalIndent(actuals, "", "  ")
	expectedJSON, _ := json.MarshalIndent(expecteds, "", "  ")

	return fmt.Sprintf(
		"You are evaluating a code review tool. Match each actual finding to the "+
			"expected finding it corresponds to.\n\n"+
			"Expected findings:\n%s\n\n"+
			"Actual findings:\n%s\n\n"+
			"For each actual finding (in order), report the index (0-based, from the "+
			"expected findings above) of the matching expected finding, or null if it "+
			"doesn't match any. Explain your reasoning first, then report the matches.",
		string(expectedJSON), string(actualsJSON),
	)
}
