package objects

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// plantPack builds a pack+index inside the database's pack directory
// without telling the database, simulating another process dropping a
// pack on disk.
func plantPack(t *testing.T, db *Database, objs map[ObjectID]struct {
	t    Type
	data []byte
}) []PackIndexEntry {
	t.Helper()
	entries, base := buildTestPack(t, db.packDir(), objs)
	// buildTestPack leaves a spare .idx1 beside the pair; the database
	// must ignore files that are not .idx.
	if err := os.Rename(
		filepath.Join(db.packDir(), base+".idx1"),
		filepath.Join(db.packDir(), base+".v1"),
	); err != nil {
		t.Fatalf("rename spare index: %v", err)
	}
	return entries
}

func TestDatabaseFindsLooseAndPacked(t *testing.T) {
	db := tempDB(t)

	looseID := mustWriteBlob(t, db, []byte("loose resident"))

	objs := testObjects(8)
	entries := plantPack(t, db, objs)

	if !db.Has(looseID) {
		t.Error("loose object not found")
	}
	for _, e := range entries {
		if !db.Has(e.ID) {
			t.Fatalf("packed object %s not found", e.ID)
		}
		typ, data, err := db.ReadObject(e.ID)
		if err != nil {
			t.Fatalf("ReadObject(%s): %v", e.ID, err)
		}
		if HashObject(typ, data) != e.ID {
			t.Errorf("payload for %s does not hash back", e.ID)
		}
	}
}

func TestDatabaseLazyPackDiscovery(t *testing.T) {
	db := tempDB(t)

	// Force the database to settle its view first.
	missing := HashObject(TypeBlob, []byte("nowhere"))
	if db.Has(missing) {
		t.Fatal("empty database claims an object")
	}

	objs := testObjects(4)
	entries := plantPack(t, db, objs)

	// The pack appeared after the last scan; lookup must pick it up
	// without reopening the database.
	if !db.Has(entries[0].ID) {
		t.Fatal("new pack was not discovered lazily")
	}
}

func TestDatabaseLoosePreferredOverPack(t *testing.T) {
	db := tempDB(t)

	payload := []byte("stored both ways")
	id := HashObject(TypeBlob, payload)
	plantPack(t, db, map[ObjectID]struct {
		t    Type
		data []byte
	}{id: {TypeBlob, payload}})
	mustWriteBlob(t, db, payload)

	typ, data, err := db.ReadObject(id)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if typ != TypeBlob || !bytes.Equal(data, payload) {
		t.Errorf("got (%s, %q)", typ.Name(), data)
	}
}

func TestDatabaseCrossPackRefDelta(t *testing.T) {
	db := tempDB(t)

	base := []byte("base stored in the first pack")
	target := []byte("target delta-encoded in the second pack")
	baseID := HashObject(TypeBlob, base)
	targetID := HashObject(TypeBlob, target)

	plantPack(t, db, map[ObjectID]struct {
		t    Type
		data []byte
	}{baseID: {TypeBlob, base}})

	// Second pack holds only a ref-delta whose base lives in the first.
	var buf bytes.Buffer
	pw, _ := NewPackWriter(&buf, 1, DefaultCompression)
	entry, err := pw.WriteRefDelta(targetID, baseID, base, target)
	if err != nil {
		t.Fatal(err)
	}
	checksum, err := pw.Finish()
	if err != nil {
		t.Fatal(err)
	}
	packBase := "pack-" + checksum.String()
	if err := os.WriteFile(filepath.Join(db.packDir(), packBase+".pack"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	var idx bytes.Buffer
	if _, err := WritePackIndexV2(&idx, []PackIndexEntry{entry}, checksum); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(db.packDir(), packBase+".idx"), idx.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	typ, data, err := db.ReadObject(targetID)
	if err != nil {
		t.Fatalf("ReadObject across packs: %v", err)
	}
	if typ != TypeBlob || !bytes.Equal(data, target) {
		t.Errorf("got (%s, %q)", typ.Name(), data)
	}
}

func TestDatabaseInvalidatePacks(t *testing.T) {
	db := tempDB(t)

	objs := testObjects(3)
	entries := plantPack(t, db, objs)
	if !db.Has(entries[0].ID) {
		t.Fatal("pack not discovered")
	}

	// Remove the pack pair, then invalidate. The object must be gone.
	packFiles, err := os.ReadDir(db.packDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range packFiles {
		if err := os.Remove(filepath.Join(db.packDir(), f.Name())); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.InvalidatePacks(); err != nil {
		t.Fatalf("InvalidatePacks: %v", err)
	}
	if db.Has(entries[0].ID) {
		t.Error("object survived pack removal plus invalidation")
	}
}

func TestResolvePrefix(t *testing.T) {
	db := tempDB(t)

	looseID := mustWriteBlob(t, db, []byte("prefix probe"))
	objs := testObjects(5)
	entries := plantPack(t, db, objs)

	matches, err := db.ResolvePrefix(looseID.String()[:8], 0)
	if err != nil {
		t.Fatalf("ResolvePrefix: %v", err)
	}
	if len(matches) != 1 || matches[0] != looseID {
		t.Errorf("loose prefix: got %v", matches)
	}

	packedID := entries[0].ID
	matches, err = db.ResolvePrefix(packedID.String()[:8], 0)
	if err != nil {
		t.Fatalf("ResolvePrefix packed: %v", err)
	}
	if len(matches) != 1 || matches[0] != packedID {
		t.Errorf("packed prefix: got %v", matches)
	}

	if _, err := db.ResolvePrefix("z", 0); !errors.Is(err, ErrBadFormat) {
		t.Errorf("short prefix: expected ErrBadFormat, got %v", err)
	}
	if _, err := db.ResolvePrefix("zz", 0); !errors.Is(err, ErrBadFormat) {
		t.Errorf("non-hex prefix: expected ErrBadFormat, got %v", err)
	}
}

func TestOpenRejectsBadOptions(t *testing.T) {
	if _, err := Open("", Options{}); err == nil {
		t.Error("Open accepted an empty directory")
	}
	if _, err := Open(t.TempDir(), Options{Compression: 42}); err == nil {
		t.Error("Open accepted compression level 42")
	}
}
