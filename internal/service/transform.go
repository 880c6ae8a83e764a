package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/owt-mfg/erpsync/internal/domain/model"
	apperrors "github.com/owt-mfg/erpsync/internal/errors"
)

// defaultRequiredFields are the payload fields every deliverable document
// must carry. The three key fields identify the record; without them the
// sink has nothing to upsert against.
var defaultRequiredFields = []string{
	model.FieldOrderID,
	model.FieldLineNo,
	model.FieldPartID,
}

// Transformer validates raw payloads and shapes them into sink documents.
// Field requirements are JMESPath expressions evaluated against the decoded
// payload; an expression yielding null or "" fails validation.
type Transformer struct {
	required []string
}

// NewTransformer compiles the given required-field expressions. Passing none
// installs the business key fields.
func NewTransformer(requiredFields ...string) (*Transformer, error) {
	fields := requiredFields
	if len(fields) == 0 {
		fields = defaultRequiredFields
	}
	for _, expr := range fields {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid required-field expression %q: %w", expr, err)
		}
	}
	return &Transformer{required: fields}, nil
}

// TransformResult carries a validated sink document and its business key.
type TransformResult struct {
	Key      model.BusinessKey
	Document json.RawMessage
}

// Transform validates the payload and produces the sink document. The
// payload passes through structurally unchanged except that the three key
// fields are normalized to strings, matching what the sink filters on.
func (t *Transformer) Transform(payload json.RawMessage) (*TransformResult, error) {
	obj, err := decodePayload(payload)
	if err != nil {
		return nil, apperrors.ValidationWrap("payload is not a JSON object", err)
	}

	for _, expr := range t.required {
		value, searchErr := jmespath.Search(expr, obj)
		if searchErr != nil {
			return nil, apperrors.ValidationWrap(fmt.Sprintf("evaluate %q", expr), searchErr)
		}
		if isEmptyValue(value) {
			return nil, apperrors.Validationf("missing required field %q", expr)
		}
	}

	key, err := model.KeyFromPayload(obj)
	if err != nil {
		return nil, apperrors.ValidationWrap("extract business key", err)
	}

	obj[model.FieldOrderID] = key.OrderID
	obj[model.FieldLineNo] = key.LineNo
	obj[model.FieldPartID] = key.PartID

	doc, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode sink document: %w", err)
	}

	return &TransformResult{Key: key, Document: doc}, nil
}

func decodePayload(payload json.RawMessage) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, errors.New("payload is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	default:
		return false
	}
}
