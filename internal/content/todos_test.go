package content

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustOneTodo(t *testing.T, content string) TodoItem {
	t.Helper()
	todos := ParseTodos(content)
	if len(todos) != 1 {
		t.Fatalf("ParseTodos(%q) returned %d todos, want 1: %+v", content, len(todos), todos)
	}
	return todos[0]
}

func TestParseTodos_Basic(t *testing.T) {
	todo := mustOneTodo(t, "#todo buy milk\n#打卡 done")
	if todo.Content != "buy milk" || todo.Completed {
		t.Errorf("todo = %+v", todo)
	}
	if !strings.HasPrefix(todo.ID, "todo_") {
		t.Errorf("id %q lacks todo_ prefix", todo.ID)
	}
	if !slices.Equal(todo.Tags, []string{"打卡"}) {
		t.Errorf("tags = %v, want [打卡]", todo.Tags)
	}
}

func TestParseTodos_TagsOmittedWithoutContext(t *testing.T) {
	todo := mustOneTodo(t, "#todo #TODO lone task")
	if todo.Tags != nil {
		t.Errorf("tags = %v, want nil", todo.Tags)
	}
}

func TestParseTodos_EmptyBlockSkipped(t *testing.T) {
	todos := ParseTodos("#todo   \n#next")
	if todos == nil || len(todos) != 0 {
		t.Errorf("got %+v, want empty non-nil slice", todos)
	}
}

func TestParseTodos_MultipleInOrder(t *testing.T) {
	todos := ParseTodos("intro #todo first task #todo second task\n#TODO third")
	var got []string
	for _, td := range todos {
		got = append(got, td.Content)
	}
	if want := []string{"first task", "second task", "third"}; !slices.Equal(got, want) {
		t.Errorf("contents = %q, want %q", got, want)
	}
}

func TestParseTodos_MarkerMustBeWholeTag(t *testing.T) {
	for _, in := range []string{
		"#todos are listed here",
		"#todo_later nope",
		"#todo买牛奶",
		"#todo2 x",
	} {
		if todos := ParseTodos(in); len(todos) != 0 {
			t.Errorf("ParseTodos(%q) = %+v, want none", in, todos)
		}
	}
	if tags := ExtractTags("#todo买牛奶"); !slices.Equal(tags, []string{"todo买牛奶"}) {
		t.Errorf("tags = %v", tags)
	}

	todo := mustOneTodo(t, "#todo 买牛奶")
	if todo.Content != "买牛奶" {
		t.Errorf("content = %q", todo.Content)
	}
}

func TestParseTodos_Attributes(t *testing.T) {
	todo := mustOneTodo(t, "#todo ship release due:2026-10-20 start:2026-10-18 !1")
	if todo.DueDate != "2026-10-20" || todo.StartDate != "2026-10-18" || todo.Priority != 1 {
		t.Errorf("todo = %+v", todo)
	}

	todo = mustOneTodo(t, "#todo bad date due:2026-13-40")
	if todo.DueDate != "" || todo.Priority != 0 {
		t.Errorf("todo = %+v", todo)
	}
}

func TestParseTodos_StableIDs(t *testing.T) {
	a := mustOneTodo(t, "#todo buy   milk")
	b := mustOneTodo(t, "some prefix\n#todo\n  buy milk\n")
	if a.ID != b.ID {
		t.Errorf("whitespace changed id: %q vs %q", a.ID, b.ID)
	}
	if again := mustOneTodo(t, "#todo buy   milk"); again.ID != a.ID {
		t.Errorf("reparse changed id: %q vs %q", again.ID, a.ID)
	}
}

func TestParseTodos_DuplicateContent(t *testing.T) {
	todos := ParseTodos("#todo water plants #todo water plants")
	if len(todos) != 2 {
		t.Fatalf("got %d todos", len(todos))
	}
	if todos[1].ID != todos[0].ID+"_1" {
		t.Errorf("ids = %q, %q", todos[0].ID, todos[1].ID)
	}
}

func TestToggleTodo_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		original string
		toggled  string
	}{
		{"plain", "#todo buy milk\n#todo call mom", "#todo buy milk\n#todo ✓ call mom"},
		{"no-break space", "#todo buy milk\n#todo\u00a0call mom", "#todo buy milk\n#todo\u00a0✓ call mom"},
		{"ideographic space", "#todo buy milk\n#todo\u3000call mom", "#todo buy milk\n#todo\u3000✓ call mom"},
		{"newline", "#todo buy milk\n#todo\n call mom", "#todo buy milk\n#todo\n ✓ call mom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			todos := ParseTodos(tt.original)
			if len(todos) != 2 {
				t.Fatalf("got %d todos", len(todos))
			}
			id := todos[1].ID

			toggled, ok := ToggleTodo(tt.original, id)
			if !ok || toggled != tt.toggled {
				t.Fatalf("toggle = %q, %v; want %q", toggled, ok, tt.toggled)
			}
			after := ParseTodos(toggled)
			if after[0].Completed || !after[1].Completed {
				t.Errorf("completion after toggle = %v, %v", after[0].Completed, after[1].Completed)
			}
			if after[1].Content != "call mom" || after[1].ID != id {
				t.Errorf("toggled todo = %+v", after[1])
			}

			restored, ok := ToggleTodo(toggled, id)
			if !ok || restored != tt.original {
				t.Errorf("second toggle = %q, %v; want %q", restored, ok, tt.original)
			}
		})
	}
}

func TestToggleTodo_DoneAfterUnicodeSpace(t *testing.T) {
	for _, in := range []string{"#todo\u00a0✓ buy milk", "#todo\u3000✓ buy milk"} {
		todo := mustOneTodo(t, in)
		if !todo.Completed {
			t.Fatalf("%q: not completed", in)
		}
		out, ok := ToggleTodo(in, todo.ID)
		if !ok || !utf8.ValidString(out) {
			t.Fatalf("%q: toggle = %q, %v", in, out, ok)
		}
		after := mustOneTodo(t, out)
		if after.Completed || after.Content != "buy milk" || after.ID != todo.ID {
			t.Errorf("%q: after toggle %+v", in, after)
		}
		if strings.Contains(out, DoneMark) {
			t.Errorf("%q: mark left in %q", in, out)
		}
	}
}

func TestToggleTodo_IgnoresPosition(t *testing.T) {
	content := "#todo alpha\n#todo beta"
	beta := ParseTodos(content)[1].ID

	// A block inserted in front must not shift which todo gets toggled.
	edited := "#todo new first\n" + content
	toggled, ok := ToggleTodo(edited, beta)
	if want := "#todo new first\n#todo alpha\n#todo ✓ beta"; !ok || toggled != want {
		t.Errorf("toggle = %q, %v; want %q", toggled, ok, want)
	}
}

func TestToggleTodo_UnknownID(t *testing.T) {
	content := "#todo something"
	out, ok := ToggleTodo(content, "todo_doesnotexist")
	if ok || out != content {
		t.Errorf("toggle = %q, %v", out, ok)
	}
}
