package audit

import "regexp"

// Masked replaces the value of every sensitive detail.
const Masked = "***MASKED***"

// SensitiveFields are masked wherever they appear in Details, at any depth.
var SensitiveFields = []string{"password", "ssn", "creditCard", "cvv", "token"}

func isSensitive(key string) bool {
	for _, f := range SensitiveFields {
		if key == f {
			return true
		}
	}
	return false
}

// Mask returns a copy of d with sensitive values replaced by Masked. Nested
// maps and slices are copied and masked too; d is not modified. Empty values
// are left as they are.
func Mask(d Details) Details {
	if d == nil {
		return Details{}
	}
	return maskMap(d)
}

func maskMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitive(k) && !isEmpty(v) {
			out[k] = Masked
			continue
		}
		out[k] = maskValue(v)
	}
	return out
}

func maskValue(v any) any {
	switch t := v.(type) {
	case Details:
		return Details(maskMap(t))
	case map[string]any:
		return maskMap(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return maskMap(m)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = maskValue(e)
		}
		return out
	case []Details:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Details(maskMap(e))
		}
		return out
	default:
		return v
	}
}

// isEmpty is true for nil, "" and false. Numeric zero still counts as a
// value, so a zero cvv or pin is masked.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	default:
		return false
	}
}

var (
	emailPattern   = regexp.MustCompile(`(.{2}).*(@.*)`)
	phonePattern   = regexp.MustCompile(`(\d{3})\d{4}(\d{3})`)
	addressPattern = regexp.MustCompile(`\d+`)
)

// Anonymize returns a copy of d with personal data blurred: the email keeps
// its first two characters and domain, the phone its first and last three
// digits, and every digit run in the address becomes ***.
func Anonymize(d Details) Details {
	out := make(Details, len(d))
	for k, v := range d {
		out[k] = v
	}
	if s, ok := out["email"].(string); ok && s != "" {
		out["email"] = emailPattern.ReplaceAllString(s, "$1***$2")
	}
	if s, ok := out["phone"].(string); ok && s != "" {
		out["phone"] = phonePattern.ReplaceAllString(s, "$1****$2")
	}
	if s, ok := out["address"].(string); ok && s != "" {
		out["address"] = addressPattern.ReplaceAllString(s, "***")
	}
	return out
}
