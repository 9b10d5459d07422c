package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/menas/internal/core"
)

// RuleDialog renders the add/edit conformance rule dialog of one editor.
// Every control posts back to the editor endpoints and swaps the dialog.
func RuleDialog(snap core.Snapshot, types []core.RuleTypeDescriptor) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		base := "/api/editors/" + snap.ID
		rule := snap.Draft.Rule

		h.open("div", "id", "rule-dialog", "class", "dialog", "data-state", snap.State.String(),
			"hx-target", "#rule-dialog", "hx-swap", "outerHTML")
		h.element("h2", snap.Draft.Title)

		if snap.State == core.StateClosed {
			h.element("p", "No rule is open.", "class", "dialog-empty")
			h.close("div")
			return h.err
		}

		ruleTypeSelect(h, base, rule.Type, snap.Draft.IsEdit, types)

		if snap.ResolveError != "" {
			h.element("p", snap.ResolveError, "class", "dialog-resolve-error")
		}

		fields := fieldsFor(rule.Type, types)
		if rule.Type == core.MappingRuleType {
			mappingSection(h, base, snap)
		}
		for _, f := range fields {
			switch f {
			case "mappingTable", "mappingTableVersion", "joinConditions":
				continue
			case "inputColumns":
				concatSection(h, base, rule.InputColumns)
			default:
				textInput(h, base, f, fieldValue(rule, f), errorFor(snap.Errors, f))
			}
		}

		h.open("label", "class", "checkpoint")
		h.raw(`<input type="checkbox" name="controlCheckpoint"`)
		h.attr("hx-patch", base+"/draft")
		h.attr("hx-vals", `js:{"controlCheckpoint": event.target.checked}`)
		if rule.ControlCheckpoint {
			h.raw(" checked")
		}
		h.raw(">")
		h.text("Control checkpoint")
		h.close("label")

		if snap.HasSchemaFieldSelector {
			schemaTree(h, base, snap)
		}

		if len(snap.Errors) > 0 {
			h.open("ul", "class", "dialog-errors")
			for _, e := range snap.Errors {
				h.element("li", e.Error(), "data-field", e.Field)
			}
			h.close("ul")
		}

		h.open("div", "class", "dialog-actions")
		h.element("button", "Submit", "hx-post", base+"/submit")
		h.element("button", "Cancel", "hx-post", base+"/cancel")
		h.close("div")

		h.close("div")
		return h.err
	})
}

func ruleTypeSelect(h *html, base, current string, locked bool, types []core.RuleTypeDescriptor) {
	h.raw(`<select name="ruleType"`)
	h.attr("hx-post", base+"/rule-type")
	if locked {
		h.raw(" disabled")
	}
	h.raw(">")
	for _, d := range types {
		h.raw("<option")
		h.attr("value", d.RuleType)
		if d.RuleType == current {
			h.raw(" selected")
		}
		h.raw(">")
		h.text(d.Label)
		h.close("option")
	}
	h.close("select")
}

func mappingSection(h *html, base string, snap core.Snapshot) {
	rule := snap.Draft.Rule
	h.open("fieldset", "class", "mapping")
	h.element("legend", "Mapping table")

	h.raw(`<select name="id"`)
	h.attr("hx-post", base+"/mapping-table")
	h.raw(">")
	for _, mt := range snap.MappingTables {
		h.raw("<option")
		h.attr("value", mt.Name)
		if mt.Name == rule.MappingTable {
			h.raw(" selected")
		}
		h.raw(">")
		h.text(mt.Name)
		h.close("option")
	}
	h.close("select")

	h.raw(`<select name="version"`)
	h.attr("hx-post", base+"/mapping-table-version")
	h.attr("hx-include", "[name=id]")
	h.raw(">")
	for _, v := range snap.MappingTableVersions {
		h.raw("<option")
		h.attr("value", itoa(v))
		if v == rule.MappingTableVersion {
			h.raw(" selected")
		}
		h.raw(">")
		h.text("v" + itoa(v))
		h.close("option")
	}
	h.close("select")

	h.open("table", "class", "join-conditions")
	h.raw("<tr><th>Dataset field</th><th>Mapping table field</th><th></th></tr>")
	for i, jc := range snap.JoinConditions {
		h.open("tr", "data-index", itoa(i))
		h.element("td", jc.DatasetField)
		h.element("td", jc.MappingTableField)
		h.open("td")
		h.element("button", "Remove", "hx-delete", base+"/join-conditions/"+itoa(i))
		h.close("td")
		h.close("tr")
	}
	h.close("table")
	h.raw(`<input type="text" name="datasetField" placeholder="Dataset field">`)
	h.raw(`<input type="text" name="mappingTableField" placeholder="Mapping table field">`)
	h.element("button", "Add join condition", "hx-post", base+"/join-conditions", "hx-include", "closest fieldset")
	h.close("fieldset")
}

func concatSection(h *html, base string, columns []string) {
	h.open("fieldset", "class", "concat")
	h.element("legend", "Input columns")
	h.open("ol")
	for i, c := range columns {
		h.open("li", "data-index", itoa(i))
		h.text(c)
		h.element("button", "Remove", "hx-delete", base+"/concat-columns/"+itoa(i))
		h.close("li")
	}
	h.close("ol")
	h.raw(`<input type="text" name="column" placeholder="Column">`)
	h.element("button", "Add column", "hx-post", base+"/concat-columns", "hx-include", "closest fieldset")
	h.close("fieldset")
}

func textInput(h *html, base, field, value, errMsg string) {
	h.open("label", "class", "field")
	h.text(field)
	h.raw(`<input type="text"`)
	h.attr("name", field)
	h.attr("value", value)
	h.attr("hx-patch", base+"/draft")
	h.attr("hx-trigger", "change")
	h.raw(">")
	if errMsg != "" {
		h.element("span", errMsg, "class", "field-error")
	}
	h.close("label")
}

func schemaTree(h *html, base string, snap core.Snapshot) {
	schema := snap.DatasetSchema
	if snap.FieldTarget == core.TargetTargetAttribute {
		if snap.MappingTableSchema == nil {
			return
		}
		schema = *snap.MappingTableSchema
	}

	h.open("ul", "class", "schema-tree", "data-schema", schema.Name)
	for _, p := range schema.Paths() {
		class := "schema-field"
		if p == snap.SelectedField {
			class += " selected"
		}
		h.open("li", "class", class, "style", "padding-left:"+itoa(strings.Count(p, ".")*12)+"px")
		h.element("a", p, "hx-post", base+"/schema-field", "hx-vals", `{"path":"`+p+`"}`)
		h.close("li")
	}
	h.close("ul")
}

func fieldsFor(ruleType string, types []core.RuleTypeDescriptor) []string {
	for _, d := range types {
		if d.RuleType == ruleType {
			return d.Fields
		}
	}
	return nil
}

func fieldValue(r core.ConformanceRule, field string) string {
	switch field {
	case "outputColumn":
		return r.OutputColumn
	case "inputColumn":
		return r.InputColumn
	case "inputColumnAlias":
		return r.InputColumnAlias
	case "outputDataType":
		return r.OutputDataType
	case "value":
		return r.Value
	case "sparkConfKey":
		return r.SparkConfKey
	case "targetAttribute":
		return r.TargetAttribute
	}
	return ""
}

func errorFor(errs []core.ValidationError, field string) string {
	for _, e := range errs {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}
