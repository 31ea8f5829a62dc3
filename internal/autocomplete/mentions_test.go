package autocomplete

import "testing"

func testQuestions() []Question {
	return []Question{
		{ID: 5, Name: "Orders by region", Alias: "orders_by_region_5", Type: "question"},
		{ID: 9, Name: "Revenue dashboard", Alias: "revenue_dashboard_9", Type: "dashboard"},
	}
}

func TestMentionsAll(t *testing.T) {
	got := Mentions("", testSchema(), testQuestions(), MentionAll)

	if len(got) != 4 {
		t.Fatalf("mentions length = %d, want 4", len(got))
	}

	table := got[0]
	if table.Type != "table" || table.Name != "orders" || table.Schema != "analytics" {
		t.Errorf("first mention = %+v, want orders table", table)
	}
	if table.InsertText != "@analytics.orders" {
		t.Errorf("table insert text = %q", table.InsertText)
	}
	if table.ID != nil {
		t.Errorf("table ID = %v, want nil", table.ID)
	}

	q := got[2]
	if q.Type != "question" || q.InsertText != "@@orders_by_region_5" {
		t.Errorf("question mention = %+v", q)
	}
	if q.ID == nil || *q.ID != 5 {
		t.Errorf("question ID = %v, want 5", q.ID)
	}

	if got[3].Type != "dashboard" {
		t.Errorf("last mention type = %q, want dashboard", got[3].Type)
	}
}

func TestMentionsQuestionsOnly(t *testing.T) {
	got := Mentions("", testSchema(), testQuestions(), MentionQuestions)

	if len(got) != 2 {
		t.Fatalf("mentions length = %d, want 2", len(got))
	}
	for _, m := range got {
		if m.Type == "table" {
			t.Errorf("table mention %+v in questions-only result", m)
		}
	}
}

func TestMentionsPrefix(t *testing.T) {
	got := Mentions("ord", testSchema(), testQuestions(), MentionAll)

	// Matches the orders table and the "Orders by region" question.
	if len(got) != 2 {
		t.Fatalf("mentions = %+v, want 2", got)
	}
	if got[0].Name != "orders" || got[1].Name != "Orders by region" {
		t.Errorf("mentions = %q, %q", got[0].Name, got[1].Name)
	}
}

func TestMentionsPrefixCaseFolded(t *testing.T) {
	got := Mentions("ORD", testSchema(), testQuestions(), MentionAll)
	if len(got) != 2 {
		t.Errorf("mentions length = %d, want 2", len(got))
	}
}

func TestMentionsQualifiedPrefix(t *testing.T) {
	got := Mentions("analytics.u", testSchema(), nil, MentionAll)

	if len(got) != 1 || got[0].Name != "users" {
		t.Errorf("mentions = %+v, want users", got)
	}
}

func TestMentionsDefaultType(t *testing.T) {
	got := Mentions("", nil, []Question{{ID: 1, Name: "Untyped", Alias: "untyped_1"}}, MentionQuestions)

	if len(got) != 1 || got[0].Type != "question" {
		t.Errorf("mentions = %+v, want default question type", got)
	}
}
