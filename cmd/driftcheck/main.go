// cmd/driftcheck validates that the persistence contract in ent/schema has
// not drifted from the domain model: every enum column must carry exactly
// the values of its domain type, and every state machine declared next to
// a schema must match the domain adjacency table.
package main

import (
	"fmt"
	"log"
	"maps"
	"os"
	"slices"
	"strings"

	"entgo.io/ent"

	"github.com/matthewbaird/rentalops/ent/schema"
	"github.com/matthewbaird/rentalops/internal/domain"
)

type enumCheck struct {
	entity string
	field  string
	fields []ent.Field
	want   []string
}

type machineCheck struct {
	entity string
	schema map[string][]string
	domain map[string][]string
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("driftcheck: ")

	fmt.Println("Phase 1: Checking enum columns against domain types...")
	problems := checkEnums(enumChecks())
	fmt.Println("Phase 2: Checking state machines against domain adjacency tables...")
	problems = append(problems, checkMachines(machineChecks())...)

	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Println("  DRIFT:", p)
		}
		log.Printf("%d drift problem(s) found", len(problems))
		os.Exit(1)
	}
	fmt.Println("\ndriftcheck: OK, no drift between ent/schema and internal/domain")
}

func strs[S ~string](vs []S) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func states[S ~string](m map[S][]S) []string {
	return strs(slices.Collect(maps.Keys(m)))
}

func table[S ~string](m map[S][]S) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[string(k)] = strs(v)
	}
	return out
}

var (
	inspectionTypes = []domain.InspectionType{domain.InspectionEntry, domain.InspectionExit, domain.InspectionPeriodic}
	agendaTypes     = []domain.AgendaEventType{domain.AgendaInspection, domain.AgendaVisit, domain.AgendaMaintenance, domain.AgendaOther}
	referenceTypes  = []domain.ReferenceType{domain.RefProperty, domain.RefNegotiation, domain.RefMaintenanceOrder, domain.RefInspection}
	// Financial entries never reference an inspection.
	financialReferenceTypes = []domain.ReferenceType{domain.RefProperty, domain.RefNegotiation, domain.RefMaintenanceOrder}
)

func enumChecks() []enumCheck {
	return []enumCheck{
		{"Property", "status", schema.Property{}.Fields(), strs(domain.PropertyStatuses)},
		{"Negotiation", "stage", schema.Negotiation{}.Fields(), states(domain.NegotiationTransitions)},
		{"FinancialEntry", "type", schema.FinancialEntry{}.Fields(), strs(domain.EntryTypes)},
		{"FinancialEntry", "status", schema.FinancialEntry{}.Fields(), states(domain.EntryTransitions)},
		{"FinancialEntry", "reference_type", schema.FinancialEntry{}.Fields(), strs(financialReferenceTypes)},
		{"DocumentWorkflow", "status", schema.DocumentWorkflow{}.Fields(), states(domain.DocumentTransitions)},
		{"DocumentWorkflow", "reference_type", schema.DocumentWorkflow{}.Fields(), strs(referenceTypes)},
		{"Inspection", "type", schema.Inspection{}.Fields(), strs(inspectionTypes)},
		{"Inspection", "status", schema.Inspection{}.Fields(), states(domain.InspectionTransitions)},
		{"MaintenanceOrder", "status", schema.MaintenanceOrder{}.Fields(), states(domain.MaintenanceTransitions)},
		{"AgendaEvent", "type", schema.AgendaEvent{}.Fields(), strs(agendaTypes)},
		{"AgendaEvent", "reference_type", schema.AgendaEvent{}.Fields(), strs(referenceTypes)},
	}
}

func machineChecks() []machineCheck {
	return []machineCheck{
		{"Negotiation", schema.ValidNegotiationTransitions, table(domain.NegotiationTransitions)},
		{"FinancialEntry", schema.ValidFinancialEntryTransitions, table(domain.EntryTransitions)},
		{"DocumentWorkflow", schema.ValidDocumentWorkflowTransitions, table(domain.DocumentTransitions)},
		{"Inspection", schema.ValidInspectionTransitions, table(domain.InspectionTransitions)},
		{"MaintenanceOrder", schema.ValidMaintenanceOrderTransitions, table(domain.MaintenanceTransitions)},
	}
}

// enumValues returns the values of the named enum field, or false when
// the schema has no such enum.
func enumValues(fields []ent.Field, name string) ([]string, bool) {
	for _, f := range fields {
		d := f.Descriptor()
		if d.Name != name || len(d.Enums) == 0 {
			continue
		}
		vals := make([]string, 0, len(d.Enums))
		for _, e := range d.Enums {
			vals = append(vals, e.V)
		}
		return vals, true
	}
	return nil, false
}

func checkEnums(checks []enumCheck) []string {
	var problems []string
	for _, c := range checks {
		got, ok := enumValues(c.fields, c.field)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s.%s: enum field missing from schema", c.entity, c.field))
			continue
		}
		if missing, extra := diff(c.want, got); len(missing)+len(extra) > 0 {
			problems = append(problems, fmt.Sprintf("%s.%s: missing %v, unexpected %v", c.entity, c.field, missing, extra))
		}
	}
	return problems
}

func checkMachines(checks []machineCheck) []string {
	var problems []string
	for _, c := range checks {
		for _, st := range sortedUnion(c.schema, c.domain) {
			sTargets, inSchema := c.schema[st]
			dTargets, inDomain := c.domain[st]
			switch {
			case !inSchema:
				problems = append(problems, fmt.Sprintf("%s: state %q missing from schema transitions", c.entity, st))
			case !inDomain:
				problems = append(problems, fmt.Sprintf("%s: schema declares unknown state %q", c.entity, st))
			default:
				if missing, extra := diff(dTargets, sTargets); len(missing)+len(extra) > 0 {
					problems = append(problems, fmt.Sprintf("%s: %s -> missing %v, unexpected %v", c.entity, st, missing, extra))
				}
			}
		}
	}
	return problems
}

// diff returns the values of want absent from got, and of got absent from
// want, both sorted.
func diff(want, got []string) (missing, extra []string) {
	for _, w := range want {
		if !slices.Contains(got, w) {
			missing = append(missing, w)
		}
	}
	for _, g := range got {
		if !slices.Contains(want, g) {
			extra = append(extra, g)
		}
	}
	slices.Sort(missing)
	slices.Sort(extra)
	return missing, extra
}

func sortedUnion(a, b map[string][]string) []string {
	keys := slices.Collect(maps.Keys(a))
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, strings.Compare)
	return keys
}
