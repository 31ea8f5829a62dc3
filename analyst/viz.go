package analyst

import "encoding/json"

// vizSettingsSchema is the JSON schema for visualization settings,
// embedded into the vizSettings parameter descriptions so the model
// emits valid settings. The frontend consumes the same shape.
var vizSettingsSchema = mustJSON(map[string]any{
	"title":       "VisualizationSettings",
	"description": "visualization settings",
	"type":        "object",
	"required":    []string{"type"},
	"properties": map[string]any{
		"type": map[string]any{
			"description": "type of the visualization (default is table)",
			"enum":        []string{"table", "bar", "line", "scatter", "area", "funnel", "pie", "pivot", "trend"},
		},
		"xCols": map[string]any{
			"description": "list of column names in the x axis (for non-pivot chart types)",
			"type":        "array",
			"items":       map[string]any{"type": "string"},
		},
		"yCols": map[string]any{
			"description": "list of column names in the y axis (for non-pivot chart types)",
			"type":        "array",
			"items":       map[string]any{"type": "string"},
		},
		"pivotConfig": map[string]any{
			"description": "pivot table configuration (only used when type is 'pivot')",
			"type":        "object",
			"required":    []string{"rows", "columns", "values"},
			"properties": map[string]any{
				"rows": map[string]any{
					"description": "dimension columns for row headers",
					"type":        "array",
					"items":       map[string]any{"type": "string"},
				},
				"columns": map[string]any{
					"description": "dimension columns for column headers",
					"type":        "array",
					"items":       map[string]any{"type": "string"},
				},
				"values": map[string]any{
					"description": "measures with per-value aggregation functions",
					"type":        "array",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"column"},
						"properties": map[string]any{
							"column": map[string]any{
								"description": "column name for the measure",
								"type":        "string",
							},
							"aggFunction": map[string]any{
								"description": "aggregation function to apply (SUM, AVG, COUNT, MIN, MAX)",
								"enum":        []string{"SUM", "AVG", "COUNT", "MIN", "MAX"},
							},
						},
					},
				},
				"rowFormulas": map[string]any{
					"description": "formulas combining top-level row dimension values",
					"type":        "array",
					"items":       map[string]any{"$ref": "#/$defs/pivotFormula"},
				},
				"columnFormulas": map[string]any{
					"description": "formulas combining top-level column dimension values",
					"type":        "array",
					"items":       map[string]any{"$ref": "#/$defs/pivotFormula"},
				},
			},
		},
		"columnFormats": map[string]any{
			"description": "per-column display formatting keyed by column name. Only set when user asks to rename columns, change decimal places, or change date format. Good defaults are applied automatically.",
			"type":        "object",
			"additionalProperties": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"alias": map[string]any{
						"description": "display name override for the column header",
						"type":        "string",
					},
					"decimalPoints": map[string]any{
						"description": "number of decimal places (0-4) for numeric columns",
						"type":        "integer",
					},
					"dateFormat": map[string]any{
						"description": "date display format: 'iso', 'us', 'eu', 'short', 'month-year', or 'year'",
						"type":        "string",
					},
				},
			},
		},
	},
	"$defs": map[string]any{
		"pivotFormula": map[string]any{
			"description": "a derived row/column computed from two top-level dimension values",
			"type":        "object",
			"required":    []string{"name", "operandA", "operandB", "operator"},
			"properties": map[string]any{
				"name":     map[string]any{"description": "display label, e.g. 'YoY Change'", "type": "string"},
				"operandA": map[string]any{"description": "top-level dimension value, e.g. '2024'", "type": "string"},
				"operandB": map[string]any{"description": "top-level dimension value, e.g. '2023'", "type": "string"},
				"operator": map[string]any{"description": "arithmetic operator: +, -, *, /", "enum": []string{"+", "-", "*", "/"}},
			},
		},
	},
})

func mustJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		panic("analyst: marshal viz schema: " + err.Error())
	}
	return string(out)
}
