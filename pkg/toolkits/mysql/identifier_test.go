package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		prefix string
		want   string
	}{
		{"plain name untouched", "users", "T", "users"},
		{"dash replaced", "user-accounts", "T", "user_accounts"},
		{"dots and spaces replaced", "a.b c", "T", "a_b_c"},
		{"digit-initial gets prefix", "1col", "C", "C_1col"},
		{"underscore-initial gets prefix", "_hidden", "T", "T__hidden"},
		{"empty yields bare prefix", "", "T", "T_"},
		{"whitespace only yields bare prefix", "   ", "C", "C_"},
		{"non-ascii fully replaced and prefixed", "名前", "C", "C___"},
		{"mixed unicode", "order名", "T", "order_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeIdentifier(tt.input, tt.prefix))
		})
	}
}

func TestSanitizeIdentifier_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, "T_1_weird_name_", SanitizeIdentifier("1 weird-name!", "T"))
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"int", "int"},
		{"bigint", "int"},
		{"smallint", "int"},
		{"tinyint(1)", "int"}, // int rule fires before the bool rule
		{"decimal", "float"},
		{"numeric", "float"},
		{"float", "float"},
		{"double", "float"},
		{"real", "float"},
		{"bool", "bool"},
		{"boolean", "bool"},
		{"date", "datetime"},
		{"datetime", "datetime"},
		{"time", "datetime"},
		{"year", "datetime"},
		{"timestamp", "datetime"},
		{"varchar", "string"},
		{"char", "string"},
		{"text", "string"},
		{"longtext", "string"},
		{"blob", "string"},
		{"varbinary", "string"},
		{"json", "string"},
		{"geometry", "string"},
		{"", "string"},
		{"VARCHAR", "string"},
		{"BIGINT", "int"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeType(tt.input))
		})
	}
}
