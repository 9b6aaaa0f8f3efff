package vendormail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ColonLabel(t *testing.T) {
	g := DefaultGrammar()
	body := "First Name: John\nLast Name: Doe"

	assert.Equal(t, "John", g.Extract(body, FieldFirstName))
	assert.Equal(t, "Doe", g.Extract(body, FieldLastName))
}

func TestExtract_LeadBody(t *testing.T) {
	g := DefaultGrammar()
	body := `You have a new lead!

First Name: Jane
Last Name: Smith
Email: jane@example.com
Phone: 415-555-0100
Zip Code: 94110
Service: Deep Clean
Frequency: Monthly
Price: $220`

	want := map[string]string{
		FieldFirstName: "Jane",
		FieldLastName:  "Smith",
		FieldEmail:     "jane@example.com",
		FieldPhone:     "415-555-0100",
		FieldZip:       "94110",
		FieldService:   "Deep Clean",
		FieldFrequency: "Monthly",
		FieldPrice:     "$220",
	}
	for field, value := range want {
		assert.Equal(t, value, g.Extract(body, field), field)
	}
}

func TestExtract_LooseLabelWithoutColon(t *testing.T) {
	g := DefaultGrammar()
	body := "First Name Maria\nFrequency   Weekly \n"

	assert.Equal(t, "Maria", g.Extract(body, FieldFirstName))
	assert.Equal(t, "Weekly", g.Extract(body, FieldFrequency))
}

func TestExtract_StrictFormWinsOverLoose(t *testing.T) {
	g := DefaultGrammar()
	// The loose "Email" form would capture "Address: ..." if it ran first.
	body := "Email Address: jane@example.com"
	assert.Equal(t, "jane@example.com", g.Extract(body, FieldEmail))

	body = "Service Type: Move Out\nService: Standard"
	assert.Equal(t, "Move Out", g.Extract(body, FieldService))
}

func TestExtract_CaseInsensitiveLabels(t *testing.T) {
	g := DefaultGrammar()
	assert.Equal(t, "Jane", g.Extract("FIRST NAME: Jane", FieldFirstName))
	assert.Equal(t, "Jane", g.Extract("first   name:Jane", FieldFirstName))
}

func TestExtract_AddressIsLineAnchored(t *testing.T) {
	g := DefaultGrammar()
	body := "Email Address: jane@example.com\nService Address: 12 Oak St, Springfield"

	assert.Equal(t, "12 Oak St, Springfield", g.Extract(body, FieldAddress))
}

func TestExtract_AbsenceIsEmpty(t *testing.T) {
	g := DefaultGrammar()
	assert.Equal(t, "", g.Extract("nothing to see here", FieldFirstName))
	assert.Equal(t, "", g.Extract("First Name:\nLast Name: Doe", FieldFirstName))
	assert.Equal(t, "", g.Extract("First Name: John", "no_such_field"))
	assert.Equal(t, "", g.Extract("", FieldEmail))
}

func TestExtractAll_CoversEveryField(t *testing.T) {
	g := DefaultGrammar()
	all := g.ExtractAll("Total: $300.00\nDate: 01-15-2026")

	assert.Len(t, all, len(g.Fields()))
	assert.Equal(t, "$300.00", all[FieldTotal])
	assert.Equal(t, "01-15-2026", all[FieldDate])
	assert.Equal(t, "", all[FieldFirstName])
}

func TestNewGrammar_ExplicitPatternsFollowLabels(t *testing.T) {
	g, err := NewGrammar([]FieldRule{{
		Field:    "ref",
		Labels:   []string{"Reference"},
		Patterns: []string{`#(\d+)`},
	}})
	require.NoError(t, err)

	assert.Equal(t, "A1", g.Extract("Reference: A1\nsee #42", "ref"))
	assert.Equal(t, "42", g.Extract("booking #42", "ref"))
}

func TestNewGrammar_Validation(t *testing.T) {
	tests := []struct {
		name  string
		rules []FieldRule
	}{
		{"empty", nil},
		{"no field name", []FieldRule{{Labels: []string{"X"}}}},
		{"duplicate field", []FieldRule{{Field: "a", Labels: []string{"A"}}, {Field: "a", Labels: []string{"B"}}}},
		{"no patterns", []FieldRule{{Field: "a"}}},
		{"bad regex", []FieldRule{{Field: "a", Patterns: []string{`(`}}}},
		{"no capture group", []FieldRule{{Field: "a", Patterns: []string{`abc`}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrammar(tt.rules)
			assert.Error(t, err)
		})
	}
}

func TestLoadGrammar(t *testing.T) {
	g, err := LoadGrammar("")
	require.NoError(t, err)
	assert.Contains(t, g.Fields(), FieldTotal)

	path := filepath.Join(t.TempDir(), "grammar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields:\n  - field: first_name\n    labels: [\"Given Name\"]\n"), 0o600))

	g, err = LoadGrammar(path)
	require.NoError(t, err)
	assert.Equal(t, []string{FieldFirstName}, g.Fields())
	assert.Equal(t, "Ada", g.Extract("Given Name: Ada", FieldFirstName))

	_, err = LoadGrammar(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
