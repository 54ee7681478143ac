package reasoner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Reasoner 的输出先用 gjson 做粗校验（是不是合法 JSON 对象、关键字段在不在），
// 再编译好的 JSON Schema 做严格校验。任何一步失败都视为"无响应"。

const tieBreakSchemaJSON = `{
  "type": "object",
  "properties": {
    "direction": {"type": "string", "enum": ["buy", "sell", "hold"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string", "minLength": 1}
  },
  "required": ["direction", "confidence", "reasoning"],
  "additionalProperties": true
}`

const opinionSchemaJSON = `{
  "type": "object",
  "properties": {
    "direction": {"type": "string", "enum": ["buy", "sell", "hold"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "risk_level": {"type": "string", "enum": ["low", "medium", "high", "extreme"]},
    "proposed_size_pct": {"type": "number", "minimum": 0, "maximum": 1},
    "stop_loss_set": {"type": "boolean"},
    "rationale": {"type": "string"}
  },
  "required": ["direction", "confidence", "risk_level"],
  "additionalProperties": true
}`

var (
	tieBreakSchema = mustCompileSchema("tiebreak.json", tieBreakSchemaJSON)
	opinionSchema  = mustCompileSchema("opinion.json", opinionSchemaJSON)
)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add schema resource %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

func validateAgainst(schema *jsonschema.Schema, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty json")
	}
	if !gjson.Valid(raw) {
		return fmt.Errorf("invalid json")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return fmt.Errorf("root must be a json object")
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// ValidateTieBreak 校验 tie-break 响应。
func ValidateTieBreak(raw string) error {
	return validateAgainst(tieBreakSchema, raw)
}

// ValidateOpinion 校验专家意见响应。
func ValidateOpinion(raw string) error {
	return validateAgainst(opinionSchema, raw)
}
