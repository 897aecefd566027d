package tasklist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse_BasicCheckboxes(t *testing.T) {
	content := "- [ ] Task A\n- [x] Task B\n  - [ ] Nested C\n"
	tasks := Parse(content)
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	if tasks[0].Status != StatusPending || tasks[1].Status != StatusComplete {
		t.Fatalf("unexpected statuses: %+v", tasks)
	}
	if tasks[2].IndentLevel != 1 || tasks[2].ParentName != "Task B" {
		t.Fatalf("nested task parent/indent wrong: %+v", tasks[2])
	}
}

func TestParse_CategorySentinels(t *testing.T) {
	content := "<!-- category: fundamental, order: 1 -->\n- [ ] Setup\n" +
		"<!-- category: independent, group: g1 -->\n- [ ] Part A\n" +
		"<!-- category: independent, group: g1 -->\n- [ ] Part B\n"
	tasks := Parse(content)
	if tasks[0].Category != Fundamental || tasks[0].GroupTag != "1" {
		t.Fatalf("fundamental sentinel not applied: %+v", tasks[0])
	}
	if tasks[1].Category != Independent || tasks[1].GroupTag != "g1" {
		t.Fatalf("independent sentinel not applied: %+v", tasks[1])
	}
	if tasks[2].GroupTag != tasks[1].GroupTag {
		t.Fatalf("shared group tag mismatch: %+v vs %+v", tasks[1], tasks[2])
	}
}

func TestParse_NoAnnotationDefaultsToUniqueFundamental(t *testing.T) {
	tasks := Parse("- [ ] A\n- [ ] B\n")
	if tasks[0].Category != Fundamental || tasks[1].Category != Fundamental {
		t.Fatalf("expected default fundamental category")
	}
	if tasks[0].GroupTag == tasks[1].GroupTag {
		t.Fatalf("unannotated tasks must get unique groups: %+v", tasks)
	}
}

func TestParse_NonCheckboxLinesIgnored(t *testing.T) {
	content := "# Heading\nSome prose.\n- [ ] Real task\nNot a task: [ ] fake\n"
	tasks := Parse(content)
	if len(tasks) != 1 || tasks[0].Name != "Real task" {
		t.Fatalf("got %+v", tasks)
	}
}

func TestGetPendingAndCompletedTasks(t *testing.T) {
	tasks := Parse("- [ ] A\n- [x] B\n- [ ] C\n")
	pending := GetPendingTasks(tasks)
	completed := GetCompletedTasks(tasks)
	if len(pending) != 2 || len(completed) != 1 {
		t.Fatalf("pending=%d completed=%d", len(pending), len(completed))
	}
}

func TestMarkTaskComplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.md")
	if err := os.WriteFile(path, []byte("- [ ] A\n- [ ] B\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	found, err := MarkTaskComplete(path, "A")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected match")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "- [x] A\n- [ ] B\n"
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	found, err = MarkTaskComplete(path, "Nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected no match for nonexistent task")
	}
}

func TestFormat_RoundTripsNormalizedForm(t *testing.T) {
	content := "<!-- category: independent, group: g1 -->\n- [ ] A\n"
	tasks := Parse(content)
	got := Format(tasks)
	if got != content {
		t.Fatalf("round-trip mismatch:\ngot:  %q\nwant: %q", got, content)
	}
}
