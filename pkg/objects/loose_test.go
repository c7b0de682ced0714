package objects

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "objects"), Options{Compression: DefaultCompression})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tempLegacyDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "objects"), Options{
		Compression:   DefaultCompression,
		LegacyHeaders: true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustWriteBlob(t *testing.T, db *Database, data []byte) ObjectID {
	t.Helper()
	id, err := db.WriteBlob(data)
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	return id
}

func TestWriteBlobKnownVectors(t *testing.T) {
	cases := []struct {
		payload string
		want    string
	}{
		{"", "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"},
		{"hello", "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0"},
		{"test content\n", "d670460b4b4aece5915caf5c68d12f560a9fe3e4"},
	}

	for _, layout := range []string{"packed", "legacy"} {
		db := tempDB(t)
		if layout == "legacy" {
			db = tempLegacyDB(t)
		}
		for _, c := range cases {
			id := mustWriteBlob(t, db, []byte(c.payload))
			if id.String() != c.want {
				t.Errorf("%s layout, blob %q: got %s, want %s", layout, c.payload, id, c.want)
			}
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, db := range []*Database{tempDB(t), tempLegacyDB(t)} {
		payload := []byte("package main\n\nfunc main() {}\n")
		id := mustWriteBlob(t, db, payload)

		typ, data, err := db.ReadObject(id)
		if err != nil {
			t.Fatalf("ReadObject: %v", err)
		}
		if typ != TypeBlob {
			t.Errorf("type: got %s, want blob", typ.Name())
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("payload: got %q, want %q", data, payload)
		}
	}
}

func TestReadAcceptsBothLayouts(t *testing.T) {
	// A reader opened without legacy configuration must still read
	// legacy files, and the other way around: dispatch is on the file
	// bytes, not on configuration.
	payload := []byte("layout independence")

	legacyDB := tempLegacyDB(t)
	id := mustWriteBlob(t, legacyDB, payload)

	modern, err := Open(legacyDB.Dir(), Options{Compression: DefaultCompression})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer modern.Close()

	typ, data, err := modern.ReadObject(id)
	if err != nil {
		t.Fatalf("ReadObject across layouts: %v", err)
	}
	if typ != TypeBlob || !bytes.Equal(data, payload) {
		t.Errorf("got (%s, %q)", typ.Name(), data)
	}
}

func TestWriteObjectShortInput(t *testing.T) {
	db := tempDB(t)
	_, err := db.WriteObject(TypeBlob, 100, strings.NewReader("only ten b"))
	if !errors.Is(err, ErrShortInput) {
		t.Fatalf("expected ErrShortInput, got %v", err)
	}
	assertNoTempFiles(t, db)
}

func TestWriteDedup(t *testing.T) {
	db := tempDB(t)
	payload := []byte("written twice")

	id1 := mustWriteBlob(t, db, payload)
	id2 := mustWriteBlob(t, db, payload)
	if id1 != id2 {
		t.Fatalf("duplicate writes returned different ids: %s vs %s", id1, id2)
	}

	fanDir := filepath.Join(db.Dir(), id1.String()[:2])
	entries, err := os.ReadDir(fanDir)
	if err != nil {
		t.Fatalf("read fan-out dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("fan-out dir holds %d files, want 1", len(entries))
	}
	assertNoTempFiles(t, db)
}

func TestHasMonotonic(t *testing.T) {
	db := tempDB(t)
	payload := []byte("now you see me")
	id := HashObject(TypeBlob, payload)

	if db.Has(id) {
		t.Fatal("Has true before write")
	}
	mustWriteBlob(t, db, payload)
	for i := 0; i < 3; i++ {
		if !db.Has(id) {
			t.Fatalf("Has flipped back to false on probe %d", i)
		}
	}
}

func TestReadMissingObject(t *testing.T) {
	db := tempDB(t)
	id := HashObject(TypeBlob, []byte("never stored"))
	_, _, err := db.ReadObject(id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadCorruptLooseObject(t *testing.T) {
	for _, layout := range []string{"packed", "legacy"} {
		db := tempDB(t)
		if layout == "legacy" {
			db = tempLegacyDB(t)
		}
		id := mustWriteBlob(t, db, []byte("soon to be damaged, long enough to matter"))

		path := filepath.Join(db.Dir(), id.String()[:2], id.String()[2:])
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read loose file: %v", err)
		}
		data[len(data)/2] ^= 0x40
		if err := os.Chmod(path, 0o644); err != nil {
			t.Fatalf("chmod: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("rewrite loose file: %v", err)
		}

		if _, _, err := db.ReadObject(id); !errors.Is(err, ErrCorruptObject) {
			t.Errorf("%s layout: expected ErrCorruptObject, got %v", layout, err)
		}
	}
}

func TestConcurrentIdenticalWriters(t *testing.T) {
	db := tempDB(t)
	payload := []byte("raced payload shared by all writers")

	const writers = 8
	ids := make([]ObjectID, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = db.WriteBlob(payload)
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		if errs[i] != nil {
			t.Fatalf("writer %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("writer %d returned %s, writer 0 returned %s", i, ids[i], ids[0])
		}
	}

	fanDir := filepath.Join(db.Dir(), ids[0].String()[:2])
	entries, err := os.ReadDir(fanDir)
	if err != nil {
		t.Fatalf("read fan-out dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("fan-out dir holds %d files, want 1", len(entries))
	}
	assertNoTempFiles(t, db)
}

func TestWriteAllObjectTypes(t *testing.T) {
	db := tempDB(t)
	for _, typ := range []Type{TypeBlob, TypeTree, TypeCommit, TypeTag} {
		payload := []byte(typ.Name() + " payload")
		if typ == TypeTree {
			payload = nil // trees may be empty; other payloads are free-form
		}
		id, err := db.WriteBytes(typ, payload)
		if err != nil {
			t.Fatalf("WriteBytes(%s): %v", typ.Name(), err)
		}
		got, data, err := db.ReadObject(id)
		if err != nil {
			t.Fatalf("ReadObject(%s): %v", typ.Name(), err)
		}
		if got != typ {
			t.Errorf("type: got %s, want %s", got.Name(), typ.Name())
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("%s payload mismatch", typ.Name())
		}
	}
}

func TestEmptyTreeID(t *testing.T) {
	db := tempDB(t)
	id, err := db.WriteBytes(TypeTree, nil)
	if err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	const want = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
	if id.String() != want {
		t.Errorf("empty tree: got %s, want %s", id, want)
	}
}

func assertNoTempFiles(t *testing.T, db *Database) {
	t.Helper()
	entries, err := os.ReadDir(db.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("read objects dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
