package sql

import "testing"

func TestCheckValueForInjection_CleanValues(t *testing.T) {
	for _, v := range []string{"10001", "jane@example.com", "Portland", "ord_8842"} {
		if result := CheckValueForInjection("zip", v); result != nil {
			t.Errorf("clean value %q flagged with fingerprint %s", v, result.Fingerprint)
		}
	}
}

func TestCheckValueForInjection_FlagsPayloads(t *testing.T) {
	result := CheckValueForInjection("customer_id", "' OR '1'='1")
	if result == nil {
		t.Fatal("expected injection payload to be flagged")
	}
	if !result.IsSQLi || result.Fingerprint == "" {
		t.Errorf("incomplete finding: %+v", result)
	}
	if result.Reference != "customer_id" {
		t.Errorf("reference not recorded: %q", result.Reference)
	}
}

func TestScreenReferenceValues_DropsTaintedReference(t *testing.T) {
	refs := map[string][]string{
		"zip":         {"10001", "10002"},
		"customer_id": {"c1", "1; DROP TABLE customers--"},
	}

	clean, findings := ScreenReferenceValues(refs)

	if _, ok := clean["customer_id"]; ok {
		t.Error("tainted reference survived screening")
	}
	if _, ok := clean["zip"]; !ok {
		t.Error("clean reference dropped")
	}
	if len(findings) == 0 {
		t.Error("expected findings for tainted reference")
	}
}
