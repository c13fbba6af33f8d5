package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
)

type testDoc struct {
	Counter int      `json:"counter"`
	Items   []string `json:"items"`
}

func openTestDoc(t *testing.T) *Document[testDoc] {
	t.Helper()
	d, err := Open(t.TempDir(), "test", func() testDoc { return testDoc{} })
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func TestLoadAbsentUsesDefault(t *testing.T) {
	d := openTestDoc(t)

	doc, err := d.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Counter != 0 || len(doc.Items) != 0 {
		t.Errorf("expected zero default, got %+v", doc)
	}
}

func TestLoadAbsentWithoutDefault(t *testing.T) {
	d, err := Open[testDoc](t.TempDir(), "strict", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := d.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load on absent document = %v, want ErrNotFound", err)
	}
	if _, err := d.Mutate(func(doc *testDoc) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Mutate on absent document = %v, want ErrNotFound", err)
	}
}

func TestMutateCommitsAndReloads(t *testing.T) {
	d := openTestDoc(t)

	got, err := d.Mutate(func(doc *testDoc) error {
		doc.Counter = 7
		doc.Items = append(doc.Items, "a")
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if got.Counter != 7 {
		t.Errorf("returned Counter = %d, want 7", got.Counter)
	}

	loaded, err := d.Load()
	if err != nil {
		t.Fatalf("Load after Mutate: %v", err)
	}
	if loaded.Counter != 7 || len(loaded.Items) != 1 || loaded.Items[0] != "a" {
		t.Errorf("loaded = %+v, want counter 7 and one item", loaded)
	}
}

func TestMutateFnErrorLeavesFileUntouched(t *testing.T) {
	d := openTestDoc(t)

	if _, err := d.Mutate(func(doc *testDoc) error {
		doc.Counter = 1
		return nil
	}); err != nil {
		t.Fatalf("first Mutate: %v", err)
	}
	before, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatalf("read committed file: %v", err)
	}

	boom := errors.New("boom")
	if _, err := d.Mutate(func(doc *testDoc) error {
		doc.Counter = 99
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Mutate should surface fn error, got %v", err)
	}

	after, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatalf("read file after failed mutate: %v", err)
	}
	if string(before) != string(after) {
		t.Error("file changed even though fn returned an error")
	}
}

func TestMutateKeepsBackup(t *testing.T) {
	d := openTestDoc(t)

	if _, err := d.Mutate(func(doc *testDoc) error { doc.Counter = 1; return nil }); err != nil {
		t.Fatalf("first Mutate: %v", err)
	}
	if _, err := d.Mutate(func(doc *testDoc) error { doc.Counter = 2; return nil }); err != nil {
		t.Fatalf("second Mutate: %v", err)
	}

	bak, err := os.ReadFile(d.Path() + ".bak")
	if err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	var prev testDoc
	if err := json.Unmarshal(bak, &prev); err != nil {
		t.Fatalf("backup is not valid JSON: %v", err)
	}
	if prev.Counter != 1 {
		t.Errorf("backup Counter = %d, want pre-mutation value 1", prev.Counter)
	}
}

func TestMutateNoTempFileLeftBehind(t *testing.T) {
	d := openTestDoc(t)

	if _, err := d.Mutate(func(doc *testDoc) error { doc.Counter = 1; return nil }); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if _, err := os.Stat(d.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should be gone after commit, stat err = %v", err)
	}
}

func TestCorruptDocumentSurfacesDecodeError(t *testing.T) {
	d := openTestDoc(t)
	if err := os.WriteFile(d.Path(), []byte("{not json"), 0o640); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	var decodeErr *DecodeError
	if _, err := d.Load(); !errors.As(err, &decodeErr) {
		t.Errorf("Load on corrupt file = %v, want DecodeError", err)
	}
	if _, err := d.Mutate(func(doc *testDoc) error { return nil }); !errors.As(err, &decodeErr) {
		t.Errorf("Mutate on corrupt file = %v, want DecodeError", err)
	}

	// The corrupt bytes must remain exactly as they were: never auto-repaired.
	data, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "{not json" {
		t.Errorf("corrupt file was modified: %q", data)
	}
}

func TestEveryCommitIsParseable(t *testing.T) {
	d := openTestDoc(t)

	for i := 0; i < 10; i++ {
		if _, err := d.Mutate(func(doc *testDoc) error {
			doc.Counter++
			doc.Items = append(doc.Items, fmt.Sprintf("item-%d", doc.Counter))
			return nil
		}); err != nil {
			t.Fatalf("Mutate %d: %v", i, err)
		}
		data, err := os.ReadFile(d.Path())
		if err != nil {
			t.Fatalf("read after commit %d: %v", i, err)
		}
		var doc testDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("commit %d left unparseable JSON: %v", i, err)
		}
	}
}

func TestConcurrentMutatesDoNotLoseUpdates(t *testing.T) {
	d := openTestDoc(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Mutate(func(doc *testDoc) error {
				doc.Counter++
				return nil
			}); err != nil {
				t.Errorf("concurrent Mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	doc, err := d.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Counter != n {
		t.Errorf("Counter = %d, want %d (lost update)", doc.Counter, n)
	}
}
