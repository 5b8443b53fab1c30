package triage

import (
	"context"
	"fmt"
	"time"
)

// Completer is the opaque text-classification capability: prompt in, text
// out. The transport behind it (Gemini, a fake in tests) is irrelevant to
// the parsing and repair logic here.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = `You are an expert AI assistant that processes technical support tickets.

Your job is to:
1. Summarize the issue.
2. Estimate its priority.
3. Provide helpful notes and resource links for human moderators.
4. List relevant technical skills required.

IMPORTANT:
- Respond with only valid raw JSON.
- Do NOT include markdown, code fences, comments, or extra formatting.
- The format must be a raw JSON object.

Repeat: Do not wrap your output in markdown or code fences.`

const userPromptTemplate = `You are a ticket triage agent.
Only return a strict JSON object with no extra text, header or markdown.

Analyze the following support ticket and provide a JSON object with:

- summary: A short 1-2 sentence summary of the issue.
- priority: One of "low", "medium", or "high". Use:
  - "high" if service is down, security/payment/data-loss risk, or deadline <= 24h.
  - "medium" for partial outages, performance degradation, or deadline <= 72h.
  - "low" for routine/how-to or non-urgent requests.
- helpfulNotes: A detailed technical explanation that a moderator can use to solve this issue. Include useful external links or resources if possible.
- relatedSkills: An array of relevant skills required to solve the issue (e.g., ["React", "MongoDB"]).

Respond ONLY with a single JSON object (no code fences, no comments):

{
  "summary": "Short summary of the ticket",
  "priority": "medium",
  "helpfulNotes": "Here are useful tips ...",
  "relatedSkills": ["React", "Node.js"]
}

Ticket information:

- Title: %s
- Description: %s`

// Classifier invokes the classification capability once per call and parses
// its output into a Verdict. It never retries internally; retry is the
// orchestrator's responsibility.
type Classifier struct {
	llm     Completer
	timeout time.Duration
}

// NewClassifier builds a classifier. timeout bounds each call; zero means
// no bound beyond the caller's context.
func NewClassifier(llm Completer, timeout time.Duration) *Classifier {
	return &Classifier{llm: llm, timeout: timeout}
}

// Analyze classifies a ticket. It fails with a *ClassificationError when the
// call errors, times out, or returns output that cannot be repaired into a
// schema-valid verdict.
func (c *Classifier) Analyze(ctx context.Context, title, description string) (*Verdict, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(userPromptTemplate, title, description)
	raw, err := c.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, &ClassificationError{Message: "classification call failed", Err: err}
	}
	return parseVerdict(raw)
}
