// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrMalformedOutput is returned when the model answer is not a JSON object
// carrying all five analysis fields.
var ErrMalformedOutput = errors.New("malformed model output")

// systemPrompt frames the model as a paper summarizer.
const systemPrompt = `You are a professional paper analyst. You read the abstract of a research paper and explain it to a technical audience in clear, precise language. You never invent results that the abstract does not state.`

// analysisPromptTmpl is the user message sent for each abstract.
var analysisPromptTmpl = template.Must(template.New("analysis").Parse(`Analyze the following paper abstract and write the analysis in {{.Language}}.

Return a JSON object with exactly these string fields:
- tldr: a one-sentence summary of the paper
- motivation: the problem the paper addresses and why it matters
- method: the approach the authors take
- result: the main experimental or theoretical results
- conclusion: what the authors conclude

Do not include any text outside the JSON object.

Example response:
{"tldr": "...", "motivation": "...", "method": "...", "result": "...", "conclusion": "..."}

Abstract:
{{.Content}}
`))

// renderPrompt executes the analysis prompt template.
func renderPrompt(language, content string) (string, error) {
	var buf bytes.Buffer
	data := struct{ Language, Content string }{Language: language, Content: content}
	if err := analysisPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseAnalysis decodes the model's answer. A Markdown code fence around the
// object is tolerated. Missing or empty fields make the answer malformed.
func parseAnalysis(text string) (types.Analysis, error) {
	body := stripFence(strings.TrimSpace(text))
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return types.Analysis{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformedOutput, truncate(text, 80))
	}

	var a types.Analysis
	if err := json.Unmarshal([]byte(body[start:end+1]), &a); err != nil {
		return types.Analysis{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	var missing []string
	for _, s := range a.Sections() {
		if strings.TrimSpace(s.Text) == "" {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		return types.Analysis{}, fmt.Errorf("%w: missing %s", ErrMalformedOutput, strings.Join(missing, ", "))
	}

	a.TLDR = strings.TrimSpace(a.TLDR)
	a.Motivation = strings.TrimSpace(a.Motivation)
	a.Method = strings.TrimSpace(a.Method)
	a.Result = strings.TrimSpace(a.Result)
	a.Conclusion = strings.TrimSpace(a.Conclusion)
	return a, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// truncate shortens s to at most max bytes, cutting on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
