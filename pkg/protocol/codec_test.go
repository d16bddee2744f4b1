package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/vdombridge/pkg/vdom"
)

const (
	tagIncrement Tag = "Increment"
	tagDecrement Tag = "Decrement"
)

func testCodec() *Codec {
	return NewCodec(tagIncrement, tagDecrement)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := testCodec()
	actions := []Action{
		NewAction(tagIncrement),
		NewAction(tagDecrement).With("by", "2"),
		NewAction(tagIncrement).With("a", "1").With("b", "ünïcode"),
	}
	for _, a := range actions {
		data, err := EncodeAction(a)
		if err != nil {
			t.Fatalf("EncodeAction(%+v) failed: %v", a, err)
		}
		got, err := c.DecodeAction(data)
		if err != nil {
			t.Fatalf("DecodeAction(%s) failed: %v", data, err)
		}
		if !reflect.DeepEqual(got, a) {
			t.Errorf("round trip = %+v, want %+v", got, a)
		}
	}
}

func TestEncodeAction_NilAssociated(t *testing.T) {
	data, err := EncodeAction(Action{Tag: tagIncrement})
	if err != nil {
		t.Fatalf("EncodeAction failed: %v", err)
	}
	if string(data) != `{"tag":"Increment","associated":{}}` {
		t.Errorf("EncodeAction = %s", data)
	}
}

func TestCodec_DecodeAction_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
		field string
	}{
		{"garbage", `not json`, ErrMalformed, ""},
		{"truncated", `{"tag":"Increment"`, ErrMalformed, ""},
		{"array", `["Increment"]`, ErrMalformed, ""},
		{"empty", ``, ErrMalformed, ""},
		{"invalid utf8", "{\"tag\":\"\xff\"}", ErrMalformed, ""},
		{"tag wrong type", `{"tag":1,"associated":{}}`, ErrMalformed, "tag"},
		{"associated wrong type", `{"tag":"Increment","associated":{"a":1}}`, ErrMalformed, "associated"},
		{"associated not object", `{"tag":"Increment","associated":"x"}`, ErrMalformed, "associated"},
		{"associated null value", `{"tag":"Increment","associated":{"a":null}}`, ErrMalformed, "associated"},
		{"uppercase keys", `{"TAG":"Increment","ASSOCIATED":{}}`, ErrMissingField, "tag"},
		{"capitalized keys", `{"Tag":"Increment","Associated":{}}`, ErrMissingField, "tag"},
		{"capitalized associated", `{"tag":"Increment","Associated":{}}`, ErrMissingField, "associated"},
		{"duplicate tag", `{"tag":"Bogus","tag":"Increment","associated":{}}`, ErrMalformed, ""},
		{"duplicate associated key", `{"tag":"Increment","associated":{"k":"a","k":"b"}}`, ErrMalformed, "associated"},
		{"trailing data", `{"tag":"Increment","associated":{}} {}`, ErrMalformed, ""},
		{"null tag", `{"tag":null,"associated":{}}`, ErrMissingField, "tag"},
		{"missing tag", `{"associated":{}}`, ErrMissingField, "tag"},
		{"missing associated", `{"tag":"Increment"}`, ErrMissingField, "associated"},
		{"null associated", `{"tag":"Increment","associated":null}`, ErrMissingField, "associated"},
		{"unknown tag", `{"tag":"Reset","associated":{}}`, ErrUnknownTag, "tag"},
	}

	c := testCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecodeAction([]byte(tt.input))
			if !errors.Is(err, tt.want) {
				t.Fatalf("DecodeAction(%q) error = %v, want %v", tt.input, err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error %T is not *DecodeError", err)
			}
			if de.Field != tt.field {
				t.Errorf("Field = %q, want %q", de.Field, tt.field)
			}
		})
	}
}

func TestCodec_DecodeAction_IgnoresUnknownFields(t *testing.T) {
	a, err := testCodec().DecodeAction([]byte(` {"tag":"Decrement","associated":{"k":"v"},"extra":true} `))
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}
	if a.Tag != tagDecrement {
		t.Errorf("Tag = %q", a.Tag)
	}
	if v, ok := a.Get("k"); !ok || v != "v" {
		t.Errorf("Get(k) = %q, %v", v, ok)
	}
}

func TestAction_WithDoesNotAlias(t *testing.T) {
	base := NewAction(tagIncrement).With("a", "1")
	derived := base.With("b", "2")
	if _, ok := base.Get("b"); ok {
		t.Error("With mutated the receiver")
	}
	if len(derived.Associated) != 2 {
		t.Errorf("derived = %+v", derived.Associated)
	}
}

func TestEncodeSnapshot_Envelope(t *testing.T) {
	tree := vdom.Div(
		"1",
		vdom.Button(vdom.Prop("onclick", NewAction(tagIncrement)), "increment"),
	)
	data, err := EncodeSnapshot(tree)
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	want := `{"tree":{"tag":"div","props":{},"children":["1",` +
		`{"tag":"button","props":{"onclick":{"tag":"Increment","associated":{}}},"children":["increment"]}]}}`
	if string(data) != want {
		t.Errorf("EncodeSnapshot =\n%s\nwant\n%s", data, want)
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	var node struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(env.Tree, &node); err != nil || node.Tag != "div" {
		t.Errorf("tree tag = %q, err = %v", node.Tag, err)
	}
}

func TestEncodeSnapshot_PropEncodingFailure(t *testing.T) {
	tree := vdom.Div(vdom.Prop("bad", make(chan int)))
	if _, err := EncodeSnapshot(tree); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeEnvelope_MissingTree(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{}`)); !errors.Is(err, ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}
	if _, err := DecodeEnvelope([]byte(`nope`)); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
}
