package domain

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestItem_MarshalJSON(t *testing.T) {
	var o Ordered[Item[Characteristics]]
	o.Set("Header", ItemOK(Characteristics{VisualCharacteristics: "v", FunctionalCharacteristics: "f"}))
	o.Set("Footer", ItemError[Characteristics]("boom"))

	b, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Header":{"visual_characteristics":"v","functional_characteristics":"f"},"Footer":{"error":"boom"}}`
	if string(b) != want {
		t.Errorf("got %s\nwant %s", b, want)
	}
}

func TestItem_UnmarshalRecognisesErrorPlaceholder(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"json error", `{"error":"bad reply"}`, "bad reply"},
		{"json value", `{"visual_characteristics":"v"}`, ""},
		{"yaml error", "error: bad reply\n", "bad reply"},
		{"yaml value", "visual_characteristics: v\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var it Item[Characteristics]
			var err error
			if tt.input[0] == '{' {
				err = json.Unmarshal([]byte(tt.input), &it)
			} else {
				err = yaml.Unmarshal([]byte(tt.input), &it)
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if it.Err != tt.wantErr {
				t.Errorf("Err = %q, want %q", it.Err, tt.wantErr)
			}
			if tt.wantErr == "" && it.Value.VisualCharacteristics != "v" {
				t.Errorf("value not decoded: %+v", it.Value)
			}
		})
	}
}
