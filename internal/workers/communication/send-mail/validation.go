package sendmail

import "beacon/internal/common/validation"

// GetInputSchema describes the job variables. Addresses are checked again
// after decoding.
func GetInputSchema() validation.Schema {
	return validation.Schema{
		"type":     "object",
		"required": []interface{}{"message"},
		"properties": map[string]interface{}{
			"message": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "to", "from", "subject", "htmlBody"},
				"properties": map[string]interface{}{
					"id":   map[string]interface{}{"type": "string", "minLength": 1},
					"kind": map[string]interface{}{"type": "string"},
					"to": map[string]interface{}{
						"type":     "array",
						"minItems": 1,
						"items":    map[string]interface{}{"type": "string", "minLength": 3},
					},
					"cc": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
					"from":     map[string]interface{}{"type": "string", "minLength": 3},
					"replyTo":  map[string]interface{}{"type": "string"},
					"subject":  map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 500},
					"htmlBody": map[string]interface{}{"type": "string", "minLength": 1},
					"textBody": map[string]interface{}{"type": "string"},
					"attachments": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":     "object",
							"required": []interface{}{"filename", "content"},
						},
					},
				},
			},
		},
	}
}
