package objects

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
)

func benchDB(b *testing.B) *Database {
	b.Helper()
	db, err := Open(filepath.Join(b.TempDir(), "objects"), Options{Compression: DefaultCompression})
	if err != nil {
		b.Fatalf("Open: %v", err)
	}
	b.Cleanup(func() { db.Close() })
	return db
}

func BenchmarkWriteUniqueBlob(b *testing.B) {
	db := benchDB(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		payload := []byte(fmt.Sprintf("blob-%d-abcdefghijklmnopqrstuvwxyz", i))
		if _, err := db.WriteBlob(payload); err != nil {
			b.Fatalf("WriteBlob: %v", err)
		}
	}
}

func BenchmarkReadLooseBlob(b *testing.B) {
	db := benchDB(b)
	payload := []byte("package main\n\nfunc main() { println(\"bench\") }\n")
	id, err := db.WriteBlob(payload)
	if err != nil {
		b.Fatalf("WriteBlob: %v", err)
	}

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := db.ReadObject(id); err != nil {
			b.Fatalf("ReadObject: %v", err)
		}
	}
}

func BenchmarkIndexFindOffset(b *testing.B) {
	entries := sampleEntries(4096)
	var w bytes.Buffer
	if _, err := WritePackIndexV2(&w, entries, ZeroID); err != nil {
		b.Fatalf("WritePackIndexV2: %v", err)
	}
	idx, err := parsePackIndex(w.Bytes())
	if err != nil {
		b.Fatalf("parse: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := entries[i%len(entries)]
		if idx.FindOffset(e.ID) != int64(e.Offset) {
			b.Fatal("wrong offset")
		}
	}
}
