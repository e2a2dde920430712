package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared across decodes; validator instances cache struct
// metadata and are safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeStrict parses a model response into v and validates it against the
// struct's validate tags. Malformed or partially-populated output is
// rejected so it is treated as a capability failure rather than persisted
// as a learned fact.
//
// Models frequently wrap JSON in markdown code fences; those are stripped
// before unmarshaling.
func DecodeStrict(raw string, v any) error {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("structured output is not valid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("structured output failed schema validation: %w", err)
	}
	return nil
}
