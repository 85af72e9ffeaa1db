package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a
// reference value resolved from session state.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Reference   string // Name of the reference that failed the check
	Value       string // The value that was checked
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns
// in a resolved reference value before it is interpolated into a generation
// prompt. Returns nil if the value is clean.
func CheckValueForInjection(reference, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Reference:   reference,
		Value:       value,
	}
}

// ScreenReferenceValues drops any resolved reference whose value list
// contains an injection pattern, returning the clean map and the findings
// for logging. The reference is treated as unresolved rather than repaired.
func ScreenReferenceValues(refs map[string][]string) (map[string][]string, []*InjectionCheckResult) {
	if len(refs) == 0 {
		return refs, nil
	}

	clean := make(map[string][]string, len(refs))
	var findings []*InjectionCheckResult

	for name, values := range refs {
		tainted := false
		for _, v := range values {
			if result := CheckValueForInjection(name, v); result != nil {
				findings = append(findings, result)
				tainted = true
			}
		}
		if !tainted {
			clean[name] = values
		}
	}

	return clean, findings
}
