package apierr

// FormatValidationErrors flattens a server validation payload into field -> message.
// It accepts either {"field": "msg" | ["msg", ...]} or [{"field": ..., "message": ...}].
// Anything else yields an empty map.
func FormatValidationErrors(errs any) map[string]string {
	out := make(map[string]string)

	switch v := errs.(type) {
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			field, fok := m["field"].(string)
			message, mok := m["message"].(string)
			if fok && mok {
				out[field] = message
			}
		}

	case map[string]any:
		for field, msg := range v {
			switch m := msg.(type) {
			case string:
				out[field] = m
			case []any:
				if len(m) > 0 {
					if s, ok := m[0].(string); ok {
						out[field] = s
					}
				}
			}
		}

	case map[string]string:
		for field, msg := range v {
			out[field] = msg
		}
	}

	return out
}
