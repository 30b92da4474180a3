package ids

import (
	"strings"
	"testing"
)

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected id length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %q", id)
		}
		seen[id] = true
	}
}

func TestPrefixedIDs(t *testing.T) {
	task := NewTask()
	if !strings.HasPrefix(task, "task_") {
		t.Fatalf("task id missing prefix: %q", task)
	}
	if task != strings.ToLower(task) {
		t.Fatalf("task id not lowercase: %q", task)
	}

	key := NewAPIKey()
	if !strings.HasPrefix(key, "key_") {
		t.Fatalf("api key missing prefix: %q", key)
	}
	if key != strings.ToLower(key) {
		t.Fatalf("api key not lowercase: %q", key)
	}
}
