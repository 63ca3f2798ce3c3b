package eql

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/mode"
)

type mapSchema map[string]field.Type

func (m mapSchema) FieldType(name string) (field.Type, bool) {
	t, ok := m[name]
	return t, ok
}

var testSchema = mapSchema{
	"@timestamp":     field.Date,
	"event.category": field.Keyword,
	"agent.id":       field.Keyword,
	"user":           field.Keyword,
	"host":           field.Keyword,
	"file_path":      field.Keyword,
	"pid":            field.Numeric,
	"ppid":           field.Numeric,
	"elevated":       field.Boolean,
}

var testSettings = Settings{
	TimestampField:       "@timestamp",
	EventCategoryField:   "event.category",
	ImplicitJoinKeyField: "agent.id",
}

func validate(t *testing.T, input string) (*Validated, error) {
	t.Helper()
	stmt, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return Validate(stmt, testSchema, testSettings)
}

func mustValidate(t *testing.T, input string) *Validated {
	t.Helper()
	v, err := validate(t, input)
	if err != nil {
		t.Fatalf("Validate(%q): %v", input, err)
	}
	return v
}

func TestValidate_EventQuery(t *testing.T) {
	v := mustValidate(t, "file where user != 'SYSTEM' by file_path")
	if v.Mode != mode.Event {
		t.Errorf("Mode = %q", v.Mode)
	}
	if len(v.Stages) != 1 {
		t.Fatalf("Stages = %d", len(v.Stages))
	}
	st := v.Stages[0]
	if st.Category != "file" {
		t.Errorf("Category = %q", st.Category)
	}
	if strings.Join(st.Keys, ",") != "file_path" {
		t.Errorf("Keys = %v", st.Keys)
	}
	if v.FieldType("user") != field.Keyword {
		t.Errorf("FieldType(user) = %q", v.FieldType("user"))
	}
}

func TestValidate_AnyCategoryIsUnconstrained(t *testing.T) {
	v := mustValidate(t, "any where pid > 4")
	if v.Stages[0].Category != "" {
		t.Errorf("Category = %q, want empty", v.Stages[0].Category)
	}
}

func TestValidate_NormalizesLiteralOnLeft(t *testing.T) {
	v := mustValidate(t, "process where 4 < pid")
	cmp := v.Stages[0].Where.(*Comparison)
	if cmp.Left.String() != "pid" || cmp.Op != OpGt {
		t.Errorf("normalized comparison = %s", cmp)
	}
}

func TestValidate_SequenceKeys(t *testing.T) {
	v := mustValidate(t, "sequence by host with maxspan=1m [process where true] [file where true] by user until [process where true]")
	if v.Mode != mode.Sequence || v.MaxSpan != time.Minute {
		t.Errorf("Mode = %q MaxSpan = %v", v.Mode, v.MaxSpan)
	}
	if got := strings.Join(v.Stages[0].Keys, ","); got != "host" {
		t.Errorf("stage 0 keys = %s", got)
	}
	if got := strings.Join(v.Stages[1].Keys, ","); got != "user" {
		t.Errorf("stage 1 keys = %s, want stage override", got)
	}
	if v.Until == nil || strings.Join(v.Until.Keys, ",") != "host" {
		t.Errorf("until keys = %v", v.Until)
	}
}

func TestValidate_ImplicitJoinKey(t *testing.T) {
	v := mustValidate(t, "sequence [process where true] [file where true]")
	for i, st := range v.Stages {
		if strings.Join(st.Keys, ",") != "agent.id" {
			t.Errorf("stage %d keys = %v, want implicit agent.id", i, st.Keys)
		}
	}

	stmt, _ := Parse("sequence [process where true] [file where true]")
	s := testSettings
	s.ImplicitJoinKeyField = "not.in.schema"
	v, err := Validate(stmt, testSchema, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Stages[0].Keys) != 0 {
		t.Errorf("unknown implicit join key should yield a single partition, got %v", v.Stages[0].Keys)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		input   string
		field   string
		message string
	}{
		{"process where missing == 1", "missing", "not declared"},
		{"process where pid == 'four'", "pid", "cannot be compared with string"},
		{"process where user == 4", "user", "cannot be compared with number"},
		{"process where elevated == 'yes'", "elevated", "cannot be compared with string"},
		{"process where user > 'a'", "user", "operator [>] is not supported"},
		{"process where pid : '4*'", "pid", "requires a keyword field"},
		{"process where pid > null", "pid", "null can only be compared"},
		{"process where user == host", "query", "between fields"},
		{"process where 1 == 2", "query", "between a field and a literal"},
		{"process where @timestamp > 'yesterday'", "@timestamp", "invalid date"},
		{"process where user in ('a', null)", "user", "null is not allowed"},
		{"process where pid", "pid", "cannot be used as a condition"},
		{"process where 'x'", "query", "is not a condition"},
		{"process where nosuch(user, 'a')", "query", "unknown function"},
		{"process where stringContains(user, 'a', 'b')", "query", "3 argument(s)"},
		{"process where startsWith(pid, 'a')", "pid", "requires a keyword field"},
		{"process where startsWith(user, 4)", "user", "expects string arguments"},
		{"sequence by host [a where true] [b where true] by host, user", "by", "inconsistent join key arity"},
		{"sequence by host [a where true] [b where true] until [c where true] by host, user", "by", "until declares 2"},
		{"sequence with maxspan=0s [a where true] [b where true]", "maxspan", "must be positive, got [0ms]"},
		{"sequence with maxspan=-5m [a where true] [b where true]", "maxspan", "must be positive"},
		{"process where true | head 0", "head", "must be positive"},
		{"process where true | tail -1", "tail", "must be positive"},
		{"process where true | unique nope", "nope", "not declared"},
		{"process where true | count | head 1", "query", "cannot follow [count]"},
		{"sequence [a where true] by nope [b where true] by nope", "nope", "not declared"},
	}
	for _, tt := range tests {
		_, err := validate(t, tt.input)
		if err == nil {
			t.Errorf("Validate(%q) expected error", tt.input)
			continue
		}
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Validate(%q) error does not wrap ErrValidation: %v", tt.input, err)
		}
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Validate(%q) error is %T", tt.input, err)
			continue
		}
		if ve.Field != tt.field {
			t.Errorf("Validate(%q) field = %q, want %q", tt.input, ve.Field, tt.field)
		}
		if !strings.Contains(ve.Message, tt.message) {
			t.Errorf("Validate(%q) message = %q, want %q", tt.input, ve.Message, tt.message)
		}
	}
}

func TestValidate_TimestampField(t *testing.T) {
	stmt, _ := Parse("process where true")

	tests := []struct {
		ts      string
		message string
	}{
		{"", "required"},
		{"missing", "not declared"},
		{"user", "must be of type [date] or [numeric]"},
	}
	for _, tt := range tests {
		s := testSettings
		s.TimestampField = tt.ts
		_, err := Validate(stmt, testSchema, s)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != "timestamp_field" || !strings.Contains(ve.Message, tt.message) {
			t.Errorf("timestamp %q: error = %v, want %q", tt.ts, err, tt.message)
		}
	}

	s := testSettings
	s.TimestampField = "pid"
	if _, err := Validate(stmt, testSchema, s); err != nil {
		t.Errorf("numeric timestamp field should be accepted: %v", err)
	}
}

func TestValidate_EventCategoryField(t *testing.T) {
	stmt, _ := Parse("process where true")

	s := testSettings
	s.EventCategoryField = "pid"
	_, err := Validate(stmt, testSchema, s)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "event_category_field" {
		t.Errorf("numeric category field: error = %v", err)
	}

	s.EventCategoryField = ""
	v, err := Validate(stmt, testSchema, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Stages[0].Category != "" {
		t.Errorf("category must be dropped without a category field, got %q", v.Stages[0].Category)
	}
}

func TestValidate_Functions(t *testing.T) {
	v := mustValidate(t, "process where StartsWith(user, 'adm') and arrayContains(pid, 1, 2)")
	and := v.Stages[0].Where.(*AndExpr)
	if and.Terms[0].(*FunctionCall).Name != FuncStartsWith {
		t.Errorf("function names must be normalized, got %s", and.Terms[0])
	}
}
