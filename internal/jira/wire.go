package jira

// Field names on the Jira issue resource.
const (
	FieldProject     = "project"
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldIssueType   = "issuetype"
	FieldLabels      = "labels"
	FieldAssignee    = "assignee"
	FieldPriority    = "priority"
	FieldStatus      = "status"
	FieldCreated     = "created"
)

// Fields is the "fields" object of an issue create or edit request. A nil
// value is written as JSON null, which Jira treats as "clear this field".
type Fields map[string]any

// IssuePayload is the body of POST /issue and PUT /issue/{key}.
type IssuePayload struct {
	Fields Fields `json:"fields"`
}

// ProjectRef selects a project by key.
type ProjectRef struct {
	Key string `json:"key"`
}

// IssueTypeRef selects an issue type by name.
type IssueTypeRef struct {
	Name string `json:"name"`
}

// AccountRef selects a user by Atlassian account id.
type AccountRef struct {
	AccountID string `json:"accountId"`
}

// PriorityRef selects a priority by id.
type PriorityRef struct {
	ID string `json:"id"`
}

// Document is an Atlassian Document Format root node.
type Document struct {
	Type    string     `json:"type"`
	Version int        `json:"version"`
	Content []DocBlock `json:"content"`
}

// DocBlock is a block node such as a paragraph.
type DocBlock struct {
	Type    string    `json:"type"`
	Content []DocText `json:"content"`
}

// DocText is an inline text node. Text is always written, even when empty.
type DocText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PlainDocument wraps text in a document holding exactly one paragraph with
// one text node.
func PlainDocument(text string) Document {
	return Document{
		Type:    "doc",
		Version: 1,
		Content: []DocBlock{{
			Type:    "paragraph",
			Content: []DocText{{Type: "text", Text: text}},
		}},
	}
}
