package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// errMalformedReport marks content that decoded but does not look like a
// report.
var errMalformedReport = errors.New("malformed report")

var thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)

const reportSchema = `{
  "type": "object",
  "required": ["friendJudgments", "songDedications", "groupVerdict"],
  "properties": {
    "friendJudgments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "judgment"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "judgment": {"type": "string", "minLength": 1}
        }
      }
    },
    "songDedications": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "song", "artist"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "song": {"type": "string", "minLength": 1},
          "artist": {"type": "string", "minLength": 1},
          "vibe": {"type": "string"},
          "reason": {"type": "string"}
        }
      }
    },
    "groupVerdict": {
      "type": "object",
      "required": ["summary"],
      "properties": {
        "summary": {"type": "string", "minLength": 1}
      }
    },
    "pairCommentaries": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["pair", "commentary"],
        "properties": {
          "pair": {"type": "string"},
          "commentary": {"type": "string"}
        }
      }
    }
  }
}`

var compiledReportSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.NewCompiler().Compile([]byte(reportSchema))
})

// cleanContent strips reasoning traces and code fences some models wrap
// around their JSON.
func cleanContent(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))

	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}

	// Some models chat before or after the object.
	if !strings.HasPrefix(s, "{") {
		start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// parseReport decodes model output into a Report and validates its shape.
// wantJudgments > 0 requires a non-empty judgments list.
func parseReport(content string, wantJudgments int) (*Report, error) {
	cleaned := cleanContent(content)

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	schema, err := compiledReportSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile report schema: %w", err)
	}
	result := schema.Validate(raw)
	if !result.IsValid() {
		var messages []string
		for field, evalErr := range result.Errors {
			messages = append(messages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		sort.Strings(messages)
		return nil, fmt.Errorf("%w: %s", errMalformedReport, strings.Join(messages, "; "))
	}

	var report Report
	if err := json.Unmarshal([]byte(cleaned), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if wantJudgments > 0 && len(report.FriendJudgments) == 0 {
		return nil, fmt.Errorf("%w: no friend judgments", errMalformedReport)
	}
	if report.PairCommentaries == nil {
		report.PairCommentaries = []PairCommentary{}
	}
	return &report, nil
}
