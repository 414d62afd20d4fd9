package main

import (
	"testing"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"github.com/stretchr/testify/assert"
)

func TestSchemaMatchesDomain(t *testing.T) {
	assert.Empty(t, checkEnums(enumChecks()))
	assert.Empty(t, checkMachines(machineChecks()))
}

func TestCheckEnums_ReportsDrift(t *testing.T) {
	fields := []ent.Field{
		field.String("name"),
		field.Enum("status").Values("open", "closed", "archived"),
	}
	problems := checkEnums([]enumCheck{
		{"Thing", "status", fields, []string{"open", "closed", "cancelled"}},
		{"Thing", "kind", fields, []string{"a"}},
	})
	want := []string{
		"Thing.status: missing [cancelled], unexpected [archived]",
		"Thing.kind: enum field missing from schema",
	}
	assert.Equal(t, want, problems)
}

func TestCheckMachines_ReportsDrift(t *testing.T) {
	problems := checkMachines([]machineCheck{{
		entity: "Thing",
		schema: map[string][]string{"open": {"closed"}, "closed": {}, "ghost": {}},
		domain: map[string][]string{"open": {"closed", "cancelled"}, "closed": {}, "cancelled": {}},
	}})
	want := []string{
		`Thing: state "cancelled" missing from schema transitions`,
		`Thing: schema declares unknown state "ghost"`,
		"Thing: open -> missing [cancelled], unexpected []",
	}
	assert.Equal(t, want, problems)
}

func TestDiff(t *testing.T) {
	missing, extra := diff([]string{"b", "a", "c"}, []string{"c", "d"})
	if got := len(missing); got != 2 {
		t.Errorf("len(missing) = %d, want %d", got, 2)
	}
	assert.Equal(t, []string{"a", "b"}, missing)
	assert.Equal(t, []string{"d"}, extra)
}
