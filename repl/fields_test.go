package repl

import (
	"encoding/json"
	"testing"
)

func TestCamelCase(t *testing.T) {
	cases := map[string]string{
		"road_whole_address": "roadWholeAddress",
		"management_number":  "managementNumber",
		"x_coordinate":       "xCoordinate",
		"name":               "name",
		"site_tel":           "siteTel",
		"trailing_":          "trailing",
		"double__underscore": "doubleUnderscore",
	}
	for in, want := range cases {
		if got := CamelCase(in); got != want {
			t.Errorf("%s: expected %s, got %s", in, want, got)
		}
	}
}

func TestToFields(t *testing.T) {
	msg := Message{
		Action: Insert,
		Columns: []Column{
			{Name: "management_number", Type: "character varying(40)", Value: "M-1"},
			{Name: "x_coordinate", Type: "numeric", Value: json.Number("201234.5")},
			{Name: "site_tel", Type: "character varying(30)", Value: nil},
		},
	}

	fields := ToFields(msg)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].Name != "managementNumber" || fields[1].Name != "xCoordinate" || fields[2].Name != "siteTel" {
		t.Errorf("order or naming not preserved: %+v", fields)
	}
	if v, _ := fields.Get("xCoordinate"); v != 201234.5 {
		t.Errorf("expected decoded float, got %#v", v)
	}
	if v, ok := fields.Get("siteTel"); !ok || v != nil {
		t.Errorf("expected present nil field, got %#v %v", v, ok)
	}
	if _, ok := fields.Get("missing"); ok {
		t.Error("expected missing field to be absent")
	}
}

func TestToFields_DeleteUsesIdentity(t *testing.T) {
	msg := Message{
		Action:   Delete,
		Identity: []Column{{Name: "management_number", Type: "text", Value: "M-9"}},
	}
	fields := ToFields(msg)
	if v, ok := fields.Get("managementNumber"); !ok || v != "M-9" {
		t.Errorf("expected identity column, got %#v", fields)
	}
	if v, ok := msg.Lookup("management_number"); !ok || v != "M-9" {
		t.Errorf("lookup should use identity for deletes, got %#v", v)
	}
}
