package sql

import (
	"strings"
	"testing"
)

func TestValidateShape_AcceptsSelect(t *testing.T) {
	normalized, err := ValidateShape("SELECT id, email FROM customers LIMIT 10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(normalized, "SELECT") {
		t.Errorf("unexpected normalization: %q", normalized)
	}
}

func TestValidateShape_AcceptsCTE(t *testing.T) {
	query := "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent LIMIT 10"
	if _, err := ValidateShape(query); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateShape_StripsTrailingSemicolon(t *testing.T) {
	normalized, err := ValidateShape("SELECT 1;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.HasSuffix(normalized, ";") {
		t.Errorf("semicolon not stripped: %q", normalized)
	}
}

func TestValidateShape_RejectsForbiddenKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"delete", "DELETE FROM orders WHERE id = 1"},
		{"update", "UPDATE orders SET status = 'x'"},
		{"insert", "INSERT INTO orders VALUES (1)"},
		{"drop", "DROP TABLE orders"},
		{"select with embedded delete", "SELECT * FROM orders; DELETE FROM orders"},
		{"cte hiding an update", "WITH x AS (UPDATE orders SET status = 'x' RETURNING id) SELECT * FROM x"},
		{"truncate", "TRUNCATE orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateShape(tt.query); err == nil {
				t.Errorf("expected rejection for %q", tt.query)
			}
		})
	}
}

func TestValidateShape_RejectsMultipleStatements(t *testing.T) {
	if _, err := ValidateShape("SELECT 1; SELECT 2"); err == nil {
		t.Error("expected rejection of multiple statements")
	}
}

func TestValidateShape_AllowsSemicolonInStringLiteral(t *testing.T) {
	query := "SELECT * FROM notes WHERE body = 'a; b' LIMIT 5"
	if _, err := ValidateShape(query); err != nil {
		t.Fatalf("semicolon inside string literal rejected: %v", err)
	}
}

func TestValidateShape_RejectsNonSelect(t *testing.T) {
	if _, err := ValidateShape("SHOW search_path"); err == nil {
		t.Error("expected rejection of non-SELECT statement")
	}
}

func TestValidateShape_KeywordInsideIdentifierAllowed(t *testing.T) {
	// "created_at" contains no whole-word forbidden keyword.
	query := "SELECT created_at FROM orders LIMIT 5"
	if _, err := ValidateShape(query); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestValidateShape_EmptyStatement(t *testing.T) {
	if _, err := ValidateShape("   "); err == nil {
		t.Error("expected rejection of empty statement")
	}
}
