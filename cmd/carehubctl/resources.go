package main

import (
	"github.com/ehr/carehub/pkg/editsession"
)

// resourceDef describes how carehubctl lists and edits one collection.
type resourceDef struct {
	Name    string
	Short   string
	Columns []string
	Schema  editsession.Schema
}

var (
	priorities = []string{"LOW", "NORMAL", "HIGH", "URGENT"}
	codeFields = []editsession.Field{
		{Name: "code.coding.0.system", Label: "Code system"},
		{Name: "code.coding.0.code", Label: "Code", Required: true},
		{Name: "code.coding.0.display", Label: "Code display"},
		{Name: "code.text", Label: "Code text"},
	}
)

func fields(groups ...[]editsession.Field) editsession.Schema {
	var out editsession.Schema
	for _, g := range groups {
		out.Fields = append(out.Fields, g...)
	}
	return out
}

var resources = []resourceDef{
	{
		Name:    "patients",
		Short:   "Patients receiving care",
		Columns: []string{"mrn", "first_name", "last_name", "birth_date", "gender"},
		Schema: fields([]editsession.Field{
			{Name: "mrn", Label: "MRN", Required: true},
			{Name: "first_name", Label: "First name", Required: true},
			{Name: "last_name", Label: "Last name", Required: true},
			{Name: "birth_date", Label: "Birth date", Kind: editsession.KindDate},
			{Name: "gender", Label: "Gender", Kind: editsession.KindEnum, Options: []string{"male", "female", "other", "unknown"}, Default: "unknown"},
			{Name: "phone", Label: "Phone"},
			{Name: "email", Label: "Email"},
			{Name: "active", Label: "Active", Kind: editsession.KindBool, Default: true},
			{Name: "insurance_id", Label: "Insurance ID"},
		}),
	},
	{
		Name:    "practitioners",
		Short:   "Clinicians and staff",
		Columns: []string{"npi", "first_name", "last_name", "specialty"},
		Schema: fields([]editsession.Field{
			{Name: "first_name", Label: "First name", Required: true},
			{Name: "last_name", Label: "Last name", Required: true},
			{Name: "npi", Label: "NPI", Required: true},
			{Name: "specialty", Label: "Specialty"},
			{Name: "email", Label: "Email"},
			{Name: "active", Label: "Active", Kind: editsession.KindBool, Default: true},
		}),
	},
	{
		Name:    "encounters",
		Short:   "Patient visits",
		Columns: []string{"status", "subject_patient_id", "class_code", "period.start", "reason_text"},
		Schema: fields([]editsession.Field{
			{Name: "status", Label: "Status", Kind: editsession.KindEnum, Options: []string{"planned", "arrived", "triaged", "in-progress", "onleave", "finished", "cancelled", "entered-in-error"}, Default: "planned"},
			{Name: "class_code", Label: "Class"},
			{Name: "subject_patient_id", Label: "Patient ID", Required: true},
			{Name: "practitioner_id", Label: "Practitioner ID"},
			{Name: "period.start", Label: "Start", Kind: editsession.KindDateTime},
			{Name: "period.end", Label: "End", Kind: editsession.KindDateTime},
			{Name: "reason_text", Label: "Reason"},
			{Name: "is_telehealth", Label: "Telehealth", Kind: editsession.KindBool},
		}),
	},
	{
		Name:    "observations",
		Short:   "Measurements and findings",
		Columns: []string{"status", "subject_patient_id", "code.coding.0.code", "code.text", "value_quantity.value"},
		Schema: fields([]editsession.Field{
			{Name: "status", Label: "Status", Kind: editsession.KindEnum, Options: []string{"registered", "preliminary", "final", "amended", "cancelled", "entered-in-error"}, Default: "final"},
			{Name: "category", Label: "Category"},
			{Name: "subject_patient_id", Label: "Patient ID", Required: true},
			{Name: "encounter_id", Label: "Encounter ID"},
		}, codeFields, []editsession.Field{
			{Name: "value_quantity.value", Label: "Value", Kind: editsession.KindNumber},
			{Name: "value_quantity.unit", Label: "Unit"},
			{Name: "value_string", Label: "Value (text)"},
			{Name: "effective_date", Label: "Effective", Kind: editsession.KindDateTime},
			{Name: "interpretation", Label: "Interpretation"},
		}),
	},
	{
		Name:    "conditions",
		Short:   "Problems and diagnoses",
		Columns: []string{"clinical_status", "subject_patient_id", "code.coding.0.code", "code.text"},
		Schema: fields([]editsession.Field{
			{Name: "clinical_status", Label: "Clinical status", Kind: editsession.KindEnum, Options: []string{"active", "recurrence", "relapse", "inactive", "remission", "resolved"}, Default: "active"},
			{Name: "verification_status", Label: "Verification", Kind: editsession.KindEnum, Options: []string{"unconfirmed", "provisional", "differential", "confirmed", "refuted", "entered-in-error"}},
			{Name: "subject_patient_id", Label: "Patient ID", Required: true},
			{Name: "encounter_id", Label: "Encounter ID"},
		}, codeFields, []editsession.Field{
			{Name: "severity", Label: "Severity"},
			{Name: "onset_date", Label: "Onset", Kind: editsession.KindDateTime},
			{Name: "abatement_date", Label: "Abatement", Kind: editsession.KindDateTime},
			{Name: "note", Label: "Note"},
		}),
	},
	{
		Name:    "allergies",
		Short:   "Allergies and intolerances",
		Columns: []string{"clinical_status", "criticality", "subject_patient_id", "code.text"},
		Schema: fields([]editsession.Field{
			{Name: "clinical_status", Label: "Clinical status", Kind: editsession.KindEnum, Options: []string{"active", "inactive", "resolved"}, Default: "active"},
			{Name: "criticality", Label: "Criticality", Kind: editsession.KindEnum, Options: []string{"low", "high", "unable-to-assess"}},
			{Name: "category", Label: "Category", Kind: editsession.KindEnum, Options: []string{"food", "medication", "environment", "biologic"}},
			{Name: "subject_patient_id", Label: "Patient ID", Required: true},
		}, codeFields, []editsession.Field{
			{Name: "reaction_text", Label: "Reaction"},
		}),
	},
	{
		Name:    "appointments",
		Short:   "Booked visits",
		Columns: []string{"status", "start", "end", "subject_patient_id", "practitioner_id"},
		Schema: fields([]editsession.Field{
			{Name: "status", Label: "Status", Kind: editsession.KindEnum, Options: []string{"proposed", "pending", "booked", "arrived", "fulfilled", "cancelled", "noshow"}, Default: "booked"},
			{Name: "subject_patient_id", Label: "Patient ID", Required: true},
			{Name: "practitioner_id", Label: "Practitioner ID", Required: true},
			{Name: "start", Label: "Start", Required: true, Kind: editsession.KindDateTime},
			{Name: "end", Label: "End", Required: true, Kind: editsession.KindDateTime},
			{Name: "service_type", Label: "Service type"},
			{Name: "location", Label: "Location"},
			{Name: "comment", Label: "Comment"},
		}),
	},
	{
		Name:    "waitlist-entries",
		Short:   "Patients waiting for a slot",
		Columns: []string{"patient_name", "department", "priority", "status", "preferred_date"},
		Schema: fields([]editsession.Field{
			{Name: "subject_patient_id", Label: "Patient ID", Required: true},
			{Name: "patient_name", Label: "Patient name"},
			{Name: "practitioner_id", Label: "Practitioner ID"},
			{Name: "department", Label: "Department"},
			{Name: "reason", Label: "Reason"},
			{Name: "priority", Label: "Priority", Kind: editsession.KindEnum, Options: priorities, Default: "NORMAL"},
			{Name: "status", Label: "Status", Kind: editsession.KindEnum, Options: []string{"ACTIVE", "CONTACTED", "SCHEDULED", "REMOVED"}, Default: "ACTIVE"},
			{Name: "preferred_date", Label: "Preferred date", Kind: editsession.KindDateTime},
			{Name: "contact_phone", Label: "Contact phone"},
			{Name: "notes", Label: "Notes"},
		}),
	},
	{
		Name:    "integrations",
		Short:   "External system connections",
		Columns: []string{"name", "type", "status", "endpoint"},
		Schema: fields([]editsession.Field{
			{Name: "name", Label: "Name", Required: true},
			{Name: "type", Label: "Type", Required: true, Kind: editsession.KindEnum, Options: []string{"fhir", "hl7v2", "edi-270", "sftp"}},
			{Name: "endpoint", Label: "Endpoint", Required: true},
			{Name: "enabled", Label: "Enabled", Kind: editsession.KindBool},
			{Name: "status", Label: "Status", Kind: editsession.KindEnum, Options: []string{"active", "inactive", "error"}, Default: "inactive"},
			{Name: "description", Label: "Description"},
		}),
	},
	{
		Name:    "work-queue-items",
		Short:   "Billing and clinical work queue",
		Columns: []string{"title", "item_type", "status", "priority", "assignee"},
		Schema: fields([]editsession.Field{
			{Name: "title", Label: "Title", Required: true},
			{Name: "item_type", Label: "Type", Required: true, Kind: editsession.KindEnum, Options: []string{"claim", "task", "prescription", "eligibility"}},
			{Name: "reference", Label: "Reference"},
			{Name: "subject_patient_id", Label: "Patient ID"},
			{Name: "assignee", Label: "Assignee"},
			{Name: "status", Label: "Status", Kind: editsession.KindEnum, Options: []string{"open", "in-progress", "done"}, Default: "open"},
			{Name: "priority", Label: "Priority", Kind: editsession.KindEnum, Options: priorities, Default: "NORMAL"},
			{Name: "due_date", Label: "Due", Kind: editsession.KindDateTime},
			{Name: "notes", Label: "Notes"},
		}),
	},
	{
		Name:    "agents",
		Short:   "Agent-builder definitions",
		Columns: []string{"name", "model", "status", "deployed_version", "endpoint"},
		Schema: fields([]editsession.Field{
			{Name: "name", Label: "Name", Required: true},
			{Name: "description", Label: "Description"},
			{Name: "instructions", Label: "Instructions", Required: true},
			{Name: "model", Label: "Model", Required: true},
			{Name: "temperature", Label: "Temperature", Kind: editsession.KindNumber},
		}),
	},
	{
		Name:    "activity-events",
		Short:   "Activity log",
		Columns: []string{"occurred_at", "action", "resource_type", "resource_id", "actor"},
	},
}

func findResource(name string) (resourceDef, bool) {
	for _, r := range resources {
		if r.Name == name {
			return r, true
		}
	}
	return resourceDef{}, false
}
