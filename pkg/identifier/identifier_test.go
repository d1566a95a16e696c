package identifier

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantScheme string
		wantValue  string
		wantErr    bool
	}{
		{
			name:       "belgian enterprise number",
			input:      "0208:0123456789",
			wantScheme: "0208",
			wantValue:  "0123456789",
		},
		{
			name:       "GLN",
			input:      "0088:7315458756324",
			wantScheme: "0088",
			wantValue:  "7315458756324",
		},
		{
			name:       "identifier containing colon",
			input:      "9915:b:test",
			wantScheme: "9915",
			wantValue:  "b:test",
		},
		{
			name:    "missing colon",
			input:   "02080123456789",
			wantErr: true,
		},
		{
			name:    "empty scheme",
			input:   ":0123456789",
			wantErr: true,
		},
		{
			name:    "empty value",
			input:   "0208:",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if addr.Scheme != tt.wantScheme {
				t.Errorf("Scheme = %s, want %s", addr.Scheme, tt.wantScheme)
			}
			if addr.Value != tt.wantValue {
				t.Errorf("Value = %s, want %s", addr.Value, tt.wantValue)
			}
			if addr.String() != tt.input {
				t.Errorf("String() = %s, want %s", addr.String(), tt.input)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := MustParse("0208:0123456789")
	b := MustParse("0208:0123456789")
	if !a.Equal(b) {
		t.Error("identical addresses should be equal")
	}

	// Equality is case-sensitive
	c := Address{Scheme: "0208", Value: "0123456789A"}
	d := Address{Scheme: "0208", Value: "0123456789a"}
	if c.Equal(d) {
		t.Error("addresses differing in case should not be equal")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	addr := MustParse("0088:7315458756324")

	data, err := json.Marshal(addr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"0088:7315458756324"` {
		t.Errorf("marshaled form = %s", data)
	}

	var decoded Address
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !addr.Equal(decoded) {
		t.Errorf("round trip mismatch: %v != %v", addr, decoded)
	}
}

func TestHashQueryName(t *testing.T) {
	addr := MustParse("0208:0123456789")
	name := HashQueryName(addr, "edelivery.tech.ec.europa.eu")

	if !strings.HasSuffix(name, ".iso6523-actorid-upis.edelivery.tech.ec.europa.eu") {
		t.Errorf("unexpected suffix: %s", name)
	}
	hash := strings.SplitN(name, ".", 2)[0]
	if len(hash) != 52 {
		t.Errorf("hash length = %d, want 52", len(hash))
	}
	if strings.Contains(hash, "=") {
		t.Error("hash should not contain padding")
	}

	// Same address always yields the same name
	if HashQueryName(addr, "edelivery.tech.ec.europa.eu") != name {
		t.Error("hash name not deterministic")
	}
}
