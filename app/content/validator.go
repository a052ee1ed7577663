package content

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Mode controls how the validator treats quiz questions whose correct
// answer does not match any option. In lenient mode the offending question
// is dropped and reported as a warning; in strict mode it invalidates the
// whole payload.
type Mode int

const (
	ModeLenient Mode = iota
	ModeStrict
)

// ValidationError aggregates every violation found in a payload. The
// validator never stops at the first problem.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload validation failed: %s", strings.Join(e.Reasons, "; "))
}

// Result is a validated payload plus any soft warnings. Warnings never
// invalidate the payload.
type Result struct {
	Payload  *Payload
	Warnings []string
}

type Validator struct {
	mode Mode
}

func NewValidator(mode Mode) *Validator {
	return &Validator{mode: mode}
}

// Run decodes and validates an enrichment payload. It is a pure function
// over the input: no payload reaches storage without passing through here.
func (v *Validator) Run(data []byte) (*Result, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	result := &Result{Payload: &payload}
	var reasons []string

	for _, difficulty := range Difficulties {
		section := payload.Section(difficulty)
		if section == nil {
			reasons = append(reasons, fmt.Sprintf("%s: section is missing", difficulty))
			continue
		}

		reasons = append(reasons, v.checkSectionCore(string(difficulty), section)...)

		// English tiers are expected to carry the full enrichment set.
		// Absence is suspicious but not invalid.
		if len(section.Keywords) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: section carries no keywords", difficulty))
		}
		if len(section.Questions) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: section carries no questions", difficulty))
		}

		kept, questionReasons, questionWarnings := v.checkQuestions(string(difficulty), section.Questions)
		if v.mode == ModeStrict {
			reasons = append(reasons, questionReasons...)
		} else {
			section.Questions = kept
			result.Warnings = append(result.Warnings, questionWarnings...)
		}

		reasons = append(reasons, v.checkPerspectives(string(difficulty), section.Perspectives)...)

		if ratio := cjkRatio(section.Summary); ratio > 0.5 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: summary is predominantly CJK (%.0f%%), expected English", difficulty, ratio*100))
		}
	}

	if payload.CN == nil {
		reasons = append(reasons, "CN: section is missing")
	} else {
		reasons = append(reasons, v.checkSectionCore("CN", payload.CN)...)

		if ratio := cjkRatio(payload.CN.Summary); payload.CN.Summary != "" && ratio < 0.3 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("CN: summary contains few CJK characters (%.0f%%), expected Chinese", ratio*100))
		}
	}

	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	return result, nil
}

// checkSectionCore validates the fields every section must carry. An empty
// string is an error, not a missing key.
func (v *Validator) checkSectionCore(name string, section *Section) []string {
	var reasons []string
	if strings.TrimSpace(section.Title) == "" {
		reasons = append(reasons, fmt.Sprintf("%s: title is empty", name))
	}
	if strings.TrimSpace(section.Summary) == "" {
		reasons = append(reasons, fmt.Sprintf("%s: summary is empty", name))
	}
	return reasons
}

// checkQuestions validates quiz questions individually; rejecting one
// question does not reject its siblings. The correct answer must exactly
// match one option string, never a letter prefix.
func (v *Validator) checkQuestions(name string, questions []Question) (kept []Question, reasons []string, warnings []string) {
	for i, q := range questions {
		var problems []string

		if strings.TrimSpace(q.Question) == "" {
			problems = append(problems, "question text is empty")
		}
		if len(q.Options) < 3 || len(q.Options) > 4 {
			problems = append(problems, fmt.Sprintf("expected 3-4 options, got %d", len(q.Options)))
		}

		matched := false
		for _, option := range q.Options {
			if option == q.CorrectAnswer {
				matched = true
				break
			}
		}
		if !matched {
			problems = append(problems, fmt.Sprintf("correct_answer %q does not match any option", q.CorrectAnswer))
		}

		if len(problems) > 0 {
			reason := fmt.Sprintf("%s: question %d (%q): %s", name, i+1, truncate(q.Question, 60), strings.Join(problems, ", "))
			reasons = append(reasons, reason)
			warnings = append(warnings, "dropped "+reason)
			continue
		}

		kept = append(kept, q)
	}

	return kept, reasons, warnings
}

func (v *Validator) checkPerspectives(name string, perspectives []Perspective) []string {
	var reasons []string
	for i, p := range perspectives {
		if !ValidAttitude(strings.ToLower(p.Attitude)) {
			reasons = append(reasons, fmt.Sprintf("%s: perspective %d has invalid attitude %q", name, i+1, p.Attitude))
		}
	}
	return reasons
}

// cjkRatio returns the share of Han runes among the letters of s. It is a
// best-effort signal only; the caller must not hard-fail on it.
func cjkRatio(s string) float64 {
	letters, han := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.Is(unicode.Han, r) {
				han++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(han) / float64(letters)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
