package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	minusx "github.com/minusxai/minusx"
)

// Toolset names select which client tools the analyst offers the model.
const (
	ToolsetClassic = "classic"
	ToolsetNative  = "native"
)

// classicTools and nativeTools list the specs advertised per toolset, in
// the order sent to the model. Every registered tool stays dispatchable
// regardless of toolset so that old logs replay.
var (
	classicTools = []string{
		"ExecuteSQLQuery", "SearchDBSchema", "SearchFiles", "GetFiles",
		"UpdateFileMetadata", "Navigate", "Clarify", "EditDashboard",
		"EditReport", "GetAllQuestions", "CreateFile",
	}
	nativeTools = []string{
		"ReadFiles", "EditFile", "PublishFile", "ExecuteQuery",
		"Navigate", "Clarify", "SearchDBSchema", "SearchFiles", "CreateFile",
	}
)

// toolSchemas renders the function descriptors for a toolset list.
func toolSchemas(names []string) ([]map[string]any, error) {
	schemas := make([]map[string]any, 0, len(names))
	for _, name := range names {
		spec, err := minusx.LookupAgent(name)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, spec.ToolSchema())
	}
	return schemas, nil
}

// clientToolSpecs returns every client-executed tool. All of them suspend
// and resolve through a later request; Navigate and UpdateFileMetadata
// validate their arguments server side first and answer malformed calls
// with a JSON error result instead of suspending.
func clientToolSpecs() []*minusx.AgentSpec {
	return []*minusx.AgentSpec{
		executeSQLQuerySpec(),
		searchDBSchemaSpec(),
		editDashboardSpec(),
		editReportSpec(),
		editAlertSpec(),
		getAllQuestionsSpec(),
		searchFilesSpec(),
		getFilesSpec(),
		updateFileMetadataSpec(),
		navigateSpec(),
		clarifySpec(),
		presentFinalAnswerSpec(),
		readFilesSpec(),
		editFileSpec(),
		publishFileSpec(),
		createFileSpec(),
		executeQuerySpec(),
	}
}

const executeSQLQueryDoc = `Execute a SQL query against the user's database.
If in Question page, use foreground=true to update the question page UI.
If query contains :paramName syntax, provide parameters array.

Composed Questions (references parameter):
- Use references to compose questions from other questions via @alias syntax
- Example: references=[{"id": 123, "alias": "base_data"}] lets you write SELECT * FROM @base_data
- Referenced questions become CTEs (Common Table Expressions) at execution time
- Single-level only: Referenced questions cannot themselves have references
- Same connection required: Only reference questions with matching connection_id
- When using foreground=true, both query and references are saved to the question

VizSettings is a JSON string representing VisualizationSettings model.
Example1 (line chart):
{
    "type": "line",
    "xCols": ["date"],
    "yCols": ["sales", "profit"]
}
Example2 (table):
{
    "type": "table"
}
Example3 (bar chart):
{
    "type": "bar",
    "xCols": ["category", "subcategory"],
    "yCols": ["revenue"]
}
Example4 (pivot table):
{
    "type": "pivot",
    "pivotConfig": {
        "rows": ["region", "city"],
        "columns": ["year"],
        "values": [{"column": "revenue", "aggFunction": "SUM"}],
    }
}
Example5 (pivot with formula):
{
    "type": "pivot",
    "pivotConfig": {
        "rows": ["product"],
        "columns": ["year"],
        "values": [{"column": "sales", "aggFunction": "SUM"}],
        "columnFormulas": [{"name": "YoY Change", "operandA": "2024", "operandB": "2023", "operator": "-"}]
    }
}
Viz Instructions by types:
- table: no need of xCols or yCols
- bar, line, scatter, area: first value of xCol is x axis, others are treated as dimensions/splits to the metrics. yCols are the various measures/metrics
- funnel, pie: one xCols val and one yCols val are needed. xCols value should be categories ideally
- pivot: use pivotConfig instead of xCols/yCols. pivotConfig.rows are dimension columns for row headers, pivotConfig.columns are dimension columns for column headers, pivotConfig.values are measures with per-value aggregation functions (SUM/AVG/COUNT/MIN/MAX). Optional: rowFormulas/columnFormulas to compute derived rows/columns from top-level dimension values.
- trend: the most recent yCols value is displayed (along with %change from last-but-one value)

columnFormats (optional): Only set when the user explicitly asks to rename a column, change decimal places, or change date display format. Good defaults are applied automatically so you do not need to set this unless asked.
Example: {"revenue": {"alias": "Sales", "decimalPoints": 2}, "order_date": {"dateFormat": "short"}}`

func executeSQLQuerySpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("ExecuteSQLQuery", executeSQLQueryDoc, []minusx.ParamSpec{
		{Name: "query", Description: "the SQL query to execute", Required: true},
		{Name: "connection_id", Description: "the database connection ID to use", Required: true},
		{Name: "vizSettings", Description: "settings to visualize the output of the query; schema: " + vizSettingsSchema},
		{Name: "foreground", Type: map[string]any{"type": "boolean"}, Description: "if true, execute in foreground mode and update the current question page UI", Default: false},
		{Name: "parameters", Type: map[string]any{"type": "array"}, Description: `array of parameter objects with structure: {"name": str, "type": "text"|"number"|"date", "label": str, "value": any}. Use when query contains :paramName syntax`},
		{Name: "references", Type: map[string]any{"type": "array"}, Description: `array of question references for composed questions: [{"id": int, "alias": str}]. Use when query contains @alias syntax (e.g., SELECT * FROM @base_data)`},
		{Name: "file_id", Type: map[string]any{"type": "integer"}, Description: "the file ID of the question to update (required if foreground is true). If this is not provided, the query will be executed in the background without updating any question."},
	})
}

const searchDBSchemaDoc = `Search database schema for tables, columns, and metadata.

Auto-detects query type: queries starting with '$' use JSONPath, others use weighted string search.

JSONPath Examples (queries starting with $):
- "$[*].tables[*]" - Get all tables across all schemas
- "$[?(@.schema=='Sales')]" - Find specific schema by name
- "$..columns[?(@.type=='VARCHAR')]" - Find all VARCHAR columns
- "$..columns[?(@.name.match(/region/i))]" - Find columns with 'region' in name (regex)
- "$..tables[?(@.table.match(/^sales/i))]" - Find tables starting with 'sales'
- "$..columns[*].name" - Get all column names only

String Search Examples (no $ prefix - RECOMMENDED for most cases):
- "region" - Finds schemas/tables/columns containing 'region' (weighted scoring)
- "customer" - Searches ALL levels with relevance ranking
- "email" - Returns scored results showing WHERE matches occurred

Note: For simple name searches, string search is easier and returns better results with scoring.
Use JSONPath for structural queries (filter by type, extract specific fields, etc).

Returns:
- String search: {results: [{schema, score, matchCount, relevantResults}], ...}
- JSONPath: {schema: [...extracted data with _schema and _table context...], ...}
  - Extracted items include _schema and _table fields showing where they came from
  - Example: {name: "CustomerID", type: "BIGINT", _schema: "Sales", _table: "Customer"}`

func searchDBSchemaSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("SearchDBSchema", searchDBSchemaDoc, []minusx.ParamSpec{
		{Name: "connection_id", Description: "the database connection ID to use", Required: true},
		{Name: "query", Description: "JSONPath query (starts with '$') or string search term"},
	})
}

const editDashboardDoc = `Edit dashboard content - add/remove questions, modify layout, or edit inline assets.
EditDashboard Operations:
    1. add_existing_question: Add existing question by ID
        - Required: question_id (int)
        - Optional: layout_item (dict: {id, x, y, w, h})
        - Auto-places at bottom if no layout provided

    2. remove_question: Remove question from dashboard
        - Required: question_id (int)
        - Removes from both assets and layout

    3. update_layout: Reposition or resize question
        - Required: layout_item (dict: {id, x, y, w, h})
        - Check layout.columns in AppState for grid width (default is 12)
        - Validates x + w <= columns

    4. add_new_question: Create NEW question and add to dashboard
        - Required: questionName (str), query (str), database_name (str), vizSettings (dict)
        - Optional: description (str)
        - Question is created in dashboard's parent folder
        - Automatically added to dashboard if called from dashboard page

    5. update_question: Update existing question on dashboard
        - Required: question_id (int)
        - Optional: query (str), vizSettings (dict), parameters (list), references (list), questionName (str), description (str)
        - Updates the question file with new values
        - Only provided fields are updated (partial update)
        - parameters: Array of {"name": str, "type": "text"|"number"|"date", "label": str (optional), "value": any (optional)}
        - Use when query contains :paramName syntax (e.g., WHERE status = :status)
        - references: Array of {"id": int, "alias": str} for composed questions`

func editDashboardSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("EditDashboard", editDashboardDoc, []minusx.ParamSpec{
		{Name: "file_id", Type: map[string]any{"type": "integer"}, Description: "The dashboard file ID to edit", Required: true},
		{Name: "operation", Description: "Operation to perform: 'add_existing_question' | 'remove_question' | 'update_layout' | 'add_new_question' | 'update_question'", Required: true},
		{Name: "question_id", Type: map[string]any{"type": "integer"}, Description: "ID of the question (required for add_existing_question, remove_question, update_question)"},
		{Name: "layout_item", Type: map[string]any{"type": "object"}, Description: "Layout position/size object {id, x, y, w, h} for update_layout operation"},
		{Name: "asset_id", Description: "Asset ID for text/image/divider operations"},
		{Name: "text_content", Description: "Text content for text asset operations"},
		{Name: "questionName", Description: "Name for the question (required for add_new_question, optional for update_question)"},
		{Name: "query", Description: "SQL query (required for add_new_question, optional for update_question)"},
		{Name: "database_name", Description: "Database connection name (required for add_new_question)"},
		{Name: "vizSettings", Type: map[string]any{"type": "object"}, Description: "Visualization settings {type, xCols, yCols} or {type: 'pivot', pivotConfig: {rows, columns, values}} (required for add_new_question, optional for update_question)"},
		{Name: "parameters", Type: map[string]any{"type": "array"}, Description: "Query parameters array [{name, type, label?, value?}] for parameterized queries with :paramName syntax. (Optional)"},
		{Name: "references", Type: map[string]any{"type": "array"}, Description: "Question references for composed questions (optional): [{id: int, alias: str}]"},
		{Name: "description", Description: "Description for the question, optional"},
	})
}

const editReportDoc = `Edit report configuration - schedule, references, prompts, and delivery settings.
EditReport Operations:
    1. update_schedule: Update when the report runs
        - Required: schedule (dict: {cron: str, timezone: str})
        - cron: Cron expression (e.g., "0 9 * * 1" = Monday 9am)
        - timezone: IANA timezone (e.g., "America/New_York")

    2. add_reference: Add a question or dashboard to analyze
        - Required: reference_type ("question" | "dashboard"), reference_id (int), prompt (str)
        - reference_id: The file ID of the question or dashboard to add
        - prompt: What to ask about this data source

    3. remove_reference: Remove a question/dashboard from the report
        - Required: reference_id (int) - the file ID of the question/dashboard to remove

    4. update_reference: Update the prompt for a reference in the report
        - Required: reference_id (int), prompt (str)

    5. update_report_prompt: Update the overall synthesis instructions
        - Required: report_prompt (str)
        - This is how to combine analyses from all references into the final report

    6. update_emails: Update the delivery email list
        - Required: emails (list of str)`

func editReportSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("EditReport", editReportDoc, []minusx.ParamSpec{
		{Name: "file_id", Type: map[string]any{"type": "integer"}, Description: "The report file ID to edit", Required: true},
		{Name: "operation", Description: "Operation: 'update_schedule' | 'add_reference' | 'remove_reference' | 'update_reference' | 'update_report_prompt' | 'update_emails'", Required: true},
		{Name: "schedule", Type: map[string]any{"type": "object"}, Description: "Schedule object {cron: str, timezone: str} for update_schedule"},
		{Name: "reference_type", Description: "Type of reference: 'question' or 'dashboard' (for add_reference)"},
		{Name: "reference_id", Type: map[string]any{"type": "integer"}, Description: "File ID of the question/dashboard to reference (for add_reference, remove_reference, update_reference)"},
		{Name: "prompt", Description: "Prompt for what to analyze about this data (for add_reference, update_reference)"},
		{Name: "report_prompt", Description: "Overall synthesis instructions (for update_report_prompt)"},
		{Name: "emails", Type: map[string]any{"type": "array"}, Description: "List of email addresses (for update_emails)"},
	})
}

const editAlertDoc = `Edit alert configuration - monitored question, condition, schedule, and delivery.
EditAlert Operations:
    1. update_schedule: Update when the alert checks
        - Required: schedule (dict: {cron: str, timezone: str})
        - cron: Cron expression (e.g., "0 9 * * 1" = Monday 9am)
        - timezone: IANA timezone (e.g., "America/New_York")

    2. update_question: Set which question to monitor
        - Required: question_id (int) - the file ID of the question

    3. update_condition: Update the alert condition
        - Required: condition (dict: {selector: str, function: str, operator: str, threshold: number, column?: str})
        - selector: "first" | "last" | "all" - which row(s) to evaluate
        - function: depends on selector
          - For "first"/"last": "value" | "diff" | "pct_change" | "months_ago" | "days_ago" | "years_ago"
            - value: raw numeric value from the selected row
            - diff: difference between selected row and adjacent row
            - pct_change: percent change between selected row and adjacent row
            - months_ago/days_ago/years_ago: calendar distance from now (for freshness checks)
          - For "all": "count" | "sum" | "avg" | "min" | "max"
            - count: total number of rows (no column needed)
            - sum/avg/min/max: aggregate of all values in the column
        - operator: ">" | "<" | "=" | ">=" | "<=" | "!="
        - threshold: numeric threshold to compare against
        - column: required for all functions except "count"

    4. update_emails: Update the delivery email list
        - Required: emails (list of str) - email addresses to notify when alert triggers`

func editAlertSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("EditAlert", editAlertDoc, []minusx.ParamSpec{
		{Name: "file_id", Type: map[string]any{"type": "integer"}, Description: "The alert file ID to edit", Required: true},
		{Name: "operation", Description: "Operation: 'update_schedule' | 'update_question' | 'update_condition' | 'update_emails'", Required: true},
		{Name: "schedule", Type: map[string]any{"type": "object"}, Description: "Schedule object {cron: str, timezone: str} for update_schedule"},
		{Name: "question_id", Type: map[string]any{"type": "integer"}, Description: "Question file ID to monitor (for update_question)"},
		{Name: "condition", Type: map[string]any{"type": "object"}, Description: "Condition object {selector, function, operator, threshold, column?} for update_condition"},
		{Name: "emails", Type: map[string]any{"type": "array"}, Description: "List of email addresses for update_emails"},
	})
}

const getAllQuestionsDoc = `Get all available questions that can be added to the dashboard.
    - Purpose: See all questions available to add to dashboard
    - Optional Parameters:
        - folder_path: Folder to search (use dashboard's parent folder from AppState.path)
        - search_query: Filter questions by name/description
        - exclude_ids: List of question IDs to exclude (e.g., already in dashboard)
    - Returns: List of questions with id, name, description, query, vizSettings, parameters
    - Usage: Call this FIRST to see what questions exist before adding to dashboard
    - Example: If dashboard is at "/org/sales-dashboard", search "/org" folder`

func getAllQuestionsSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("GetAllQuestions", getAllQuestionsDoc, []minusx.ParamSpec{
		{Name: "folder_path"},
		{Name: "search_query"},
		{Name: "exclude_ids", Type: map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}},
	})
}

const searchFilesDoc = `Search files by name, description, or content across questions and dashboards.
- Purpose: Find existing questions/dashboards that might be relevant
- Parameters:
    - query (required): Search term to find in file names, descriptions, and content
    - file_types (optional): ['question', 'dashboard'] - defaults to both
    - folder_path (optional): Folder to search in - defaults to your home folder
    - limit (optional): Max results to return - defaults to 20
    - offset (optional): Skip first N results - defaults to 0 for pagination
- Returns: Ranked results with match snippets showing WHERE the query matched
- Example: SearchFiles(query="revenue analysis") to find revenue-related files`

func searchFilesSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("SearchFiles", searchFilesDoc, []minusx.ParamSpec{
		{Name: "query", Description: "Search term to find in file names, descriptions, and content", Required: true},
		{Name: "file_types", Type: map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, Description: "File types to search: 'question', 'dashboard'. Default: both"},
		{Name: "folder_path", Description: "Folder path to search within (default: user's home folder)"},
		{Name: "depth", Type: map[string]any{"type": "integer"}, Description: "Folder depth to search (default: 999 for all subfolders)", Default: 999},
		{Name: "limit", Type: map[string]any{"type": "integer"}, Description: "Maximum number of results to return (default: 20)", Default: 20},
		{Name: "offset", Type: map[string]any{"type": "integer"}, Description: "Number of results to skip for pagination (default: 0)", Default: 0},
	})
}

const getFilesDoc = `Load files by IDs with optional content retrieval.
Efficiently loads multiple files at once. By default returns metadata only.
- Purpose: Load full details of specific files after searching
- Parameters:
    - ids (required): List of file IDs to load [1, 2, 3]
    - include_content (optional): true to load full content, false for metadata only
- Returns: Complete file information including queries, visualizations, etc.
- Example: GetFiles(ids=[42, 57], include_content=true)`

func getFilesSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("GetFiles", getFilesDoc, []minusx.ParamSpec{
		{Name: "ids", Type: map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}, Description: "List of file IDs to load", Required: true},
		{Name: "include_content", Type: map[string]any{"type": "boolean"}, Description: "Include full file content (default: false, metadata only)", Default: false},
	})
}

const updateFileMetadataDoc = `Update current file's name, description, or path.

Updates the current page's file (question or dashboard).
Changes reflect immediately in the UI.

Examples:
- Rename: UpdateFileMetadata(file_id=123, name="Q4 Revenue Report")
- Update description: UpdateFileMetadata(file_id=456, description="Sales analysis for Q4")
- Both: UpdateFileMetadata(file_id=789, name="Q4 Revenue", description="Updated report")
Note: At least one of name, description, or path must be provided.`

func updateFileMetadataSpec() *minusx.AgentSpec {
	return &minusx.AgentSpec{
		Name:        "UpdateFileMetadata",
		Description: updateFileMetadataDoc,
		Params: []minusx.ParamSpec{
			{Name: "file_id", Type: map[string]any{"type": "integer"}, Description: "The file ID to update", Required: true},
			{Name: "name", Description: "New display name (optional)"},
			{Name: "description", Description: "New description (optional)"},
			{Name: "path", Description: "New full path (optional)"},
		},
		New: func(h minusx.TaskHandle, args map[string]any) (minusx.Agent, error) {
			return &updateFileMetadataAgent{
				handle:      h,
				name:        args["name"],
				description: args["description"],
				path:        args["path"],
			}, nil
		},
	}
}

// updateFileMetadataAgent rejects calls that update nothing before
// handing the call to the client.
type updateFileMetadataAgent struct {
	handle            minusx.TaskHandle
	name, description any
	path              any
}

func (a *updateFileMetadataAgent) Reduce(context.Context, [][]*minusx.CompressedTask) error {
	return nil
}

func (a *updateFileMetadataAgent) Run(context.Context) (any, error) {
	if !truthy(a.name) && !truthy(a.description) && !truthy(a.path) {
		return errorResult("Must provide at least one of: name, description, or path"), nil
	}
	return nil, minusx.SuspendTask(a.handle.UniqueID)
}

const navigateDoc = `Navigate user to a specific file, folder, or new file creation page.
Use this tool to direct users to different pages in the app.

Valid combinations:
- file_id only: Navigate to existing file
- path only: Navigate to folder
- newFileType only: Create new file in default folder
- newFileType + path: Create new file in specified folder

Invalid combinations:
- file_id + newFileType

Examples:
- Navigate to file: Navigate(file_id=123)
- Navigate to folder: Navigate(path="/org/reports")
- Create new dashboard: Navigate(newFileType="dashboard")
- Create new question in folder: Navigate(newFileType="question", path="/org/reports")
- If you don't want to use an argument don't pass it at all. Don't try to pass empty or null values.

Returns:
- Notifies of the success of navigation and the new app state`

func navigateSpec() *minusx.AgentSpec {
	return &minusx.AgentSpec{
		Name:        "Navigate",
		Description: navigateDoc,
		Params: []minusx.ParamSpec{
			{Name: "file_id", Type: map[string]any{"type": "integer"}, Description: "File ID to navigate to (optional, eg: 123 -> /f/123)"},
			{Name: "path", Description: "Folder path to navigate to (optional, eg: '/org/reports' -> /p/org/reports)"},
			{Name: "newFileType", Description: "Type of new file to create: 'question', 'dashboard', etc. (optional, question -> /new/question)"},
		},
		New: func(h minusx.TaskHandle, args map[string]any) (minusx.Agent, error) {
			return &navigateAgent{
				handle:      h,
				fileID:      args["file_id"],
				path:        args["path"],
				newFileType: args["newFileType"],
			}, nil
		},
	}
}

// navigateAgent validates the argument combination server side so the
// model gets an actionable error instead of a broken page load.
type navigateAgent struct {
	handle       minusx.TaskHandle
	fileID, path any
	newFileType  any
}

func (a *navigateAgent) Reduce(context.Context, [][]*minusx.CompressedTask) error {
	return nil
}

func (a *navigateAgent) Run(context.Context) (any, error) {
	if a.fileID == nil && a.path == nil && a.newFileType == nil {
		return errorResult("Must provide at least one of: file_id, path, or newFileType"), nil
	}
	if truthy(a.fileID) && !integerLike(a.fileID) {
		return errorResult(fmt.Sprintf("Invalid file_id %v. If you do not want to provide it, don't pass it at all.", a.fileID)), nil
	}
	return nil, minusx.SuspendTask(a.handle.UniqueID)
}

const clarifyDoc = `Ask the user for clarification when their request is ambiguous.

Use this tool when:
- User's request has multiple valid interpretations
- You need to choose between different approaches
- Additional information is needed to proceed

Returns:
- success: true if user selected, false if user cancelled
- message: "User selected: <label>" or "User cancelled the clarification request"
- selection: The full option object(s) selected by user (single object or array if multiSelect)

Example:
Clarify(
    question="What time range do you want to analyze?",
    options=[
        {"label": "Last 7 days", "description": "Recent data"},
        {"label": "Last 30 days", "description": "Monthly view"},
        {"label": "Last 90 days", "description": "Quarterly view"}
    ],
    multiSelect=False
)
- Try to limit to 3 options for best user experience.
- Use multiSelect=True if multiple selections are allowed.`

func clarifySpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("Clarify", clarifyDoc, []minusx.ParamSpec{
		{Name: "question", Description: "The question to ask the user", Required: true},
		{Name: "options", Type: map[string]any{"type": "array", "items": map[string]any{"type": "object"}}, Description: "List of options, each with label (str) and optional description (str)", Required: true},
		{Name: "multiSelect", Type: map[string]any{"type": "boolean"}, Description: "If true, user can select multiple options", Default: false},
	})
}

const presentFinalAnswerDoc = `DEPRECATED: Use <thinking> and <answer> XML tags instead.

This tool is kept for backwards compatibility with old conversation logs.
New conversations should use XML tags directly in the model's response:
- <thinking> tags for internal reasoning and exploration
- <answer> tags for user-facing responses

Present the final analysis to the user after completing all exploratory work.
Use this tool to structure your final conclusions after running exploratory queries.
This separates your working process from the final answer the user sees.

**IMPORTANT**:
- Call this AFTER completing all data exploration and analysis
- Put your complete findings in this tool instead of writing long markdown responses
- Use markdown formatting for the answer (headers, lists, bold, table, etc.)
- Use Markdown table if you want to show results, instead of a list of items, especially if could use columns
- End with a helpful message to continue the conversation like "What else would you like me to do?" or
  "Would you like to see further slices on ColumnB?" etc.`

func presentFinalAnswerSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("PresentFinalAnswer", presentFinalAnswerDoc, []minusx.ParamSpec{
		{Name: "answer", Description: "The final answer in markdown format with your complete analysis, insights, and conclusions", Required: true},
	})
}

const readFilesDoc = `Load multiple files with their full JSON representation.

Returns each file as complete JSON: {"id": 123, "name": "...", "path": "...", "type": "question", "content": {...}}

Use this to:
- Read file content before editing (see full structure including name, path, content)
- Inspect multiple files at once
- Get file metadata and content in one call

The response includes file states, references, and cached query results.`

func readFilesSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("ReadFiles", readFilesDoc, []minusx.ParamSpec{
		{Name: "fileIds", Type: map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}, Description: "Array of file IDs to load", Required: true},
	})
}

const editFileDoc = `Edit a file using string find-and-replace.

Search for oldMatch in the FULL file JSON and replace with newMatch.
The file JSON includes: {"id": 123, "name": "...", "path": "...", "type": "question", "content": {...}}

You can edit ANY field (name, path, or content) using this tool.
Examples:
- Change name: oldMatch='"name":"Old Name"', newMatch='"name":"New Name"'
- Change query: oldMatch='"query":"SELECT 1"', newMatch='"query":"SELECT * FROM users"'
- Change description: oldMatch='"description":"Old"', newMatch='"description":"Updated"'

The tool validates changes and returns a diff.
Changes are stored in the editor but NOT saved to database until PublishFile is called.

Note: When editing a question while currently viewing a different file, the question will be
automatically saved and shown in a modal overlay on the current page.
No need to call Navigate or PublishFile afterward - it is handled automatically.`

func editFileSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("EditFile", editFileDoc, []minusx.ParamSpec{
		{Name: "fileId", Type: map[string]any{"type": "integer"}, Description: "File ID to edit", Required: true},
		{Name: "oldMatch", Description: "String to search for in full file JSON (including name, path, content)", Required: true},
		{Name: "newMatch", Description: "String to replace with", Required: true},
	})
}

const publishFileDoc = `Commit changes from the editor to the database.

Saves the specified file and all dirty references in a single atomic transaction.
Use this after EditFile to persist changes to disk.`

func publishFileSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("PublishFile", publishFileDoc, []minusx.ParamSpec{
		{Name: "fileId", Type: map[string]any{"type": "integer"}, Description: "File ID to publish (will cascade to dirty references)", Required: true},
	})
}

const createFileDoc = `Create a new file (question or dashboard).

Behavior depends on context:
- Creating a *question* while viewing any file: the question is created, saved,
  and shown in a modal overlay on the current page. No page navigation occurs.
  Do NOT call Navigate after this.
  Returns questionId in the result - use it to add the question to a dashboard:
    EditDashboard(operation="add_existing_question", question_id=<questionId>, file_id=<dashboardId>)
- Creating a *dashboard*, or any file from a folder: navigates to the new file page.`

func createFileSpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("CreateFile", createFileDoc, []minusx.ParamSpec{
		{Name: "file_type", Description: "File type to create: 'question' or 'dashboard'", Required: true},
		{Name: "name", Description: "Display name for the new file"},
		{Name: "query", Description: "Initial SQL query (questions only)"},
		{Name: "database_name", Description: "Database connection name (questions only)"},
		{Name: "viz_settings", Type: map[string]any{"type": "object"}, Description: "Initial visualization settings (questions only)"},
		{Name: "folder", Description: "Folder path to create the file in"},
	})
}

const executeQueryDoc = `Execute a standalone SQL query without modifying any files.

Use this to run ad-hoc queries for data exploration.
Results are cached but not associated with any question file.`

func executeQuerySpec() *minusx.AgentSpec {
	return minusx.NewClientToolSpec("ExecuteQuery", executeQueryDoc, []minusx.ParamSpec{
		{Name: "query", Description: "SQL query to execute", Required: true},
		{Name: "connectionId", Description: "Database connection name", Required: true},
		{Name: "parameters", Type: map[string]any{"type": "object"}, Description: "Query parameters as key-value pairs"},
		{Name: "vizSettings", Description: "settings to visualize the output of the query; schema: " + vizSettingsSchema},
	})
}

// errorResult encodes a tool-level validation failure the way client
// tools report theirs, so the model sees a uniform result shape.
func errorResult(msg string) string {
	out, _ := json.Marshal(map[string]any{"success": false, "error": msg})
	return string(out)
}

// truthy follows JSON-ish truthiness: nil, false, zero, empty string and
// empty collections are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// integerLike reports whether a truthy file_id resolves to a non-zero
// integer. Floats truncate; strings must parse as base-10.
func integerLike(v any) bool {
	switch x := v.(type) {
	case float64:
		return int(x) != 0
	case int:
		return x != 0
	case bool:
		return x
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return err == nil && n != 0
	default:
		return false
	}
}

// compile-time checks
var (
	_ minusx.Agent = (*navigateAgent)(nil)
	_ minusx.Agent = (*updateFileMetadataAgent)(nil)
)
