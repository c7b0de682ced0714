package objects

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// FsckSummary reports what a Fsck sweep covered.
type FsckSummary struct {
	LooseObjects  int
	Packs         int
	PackedObjects int
}

// Fsck verifies every object the database can reach: each loose object
// inflates and re-hashes to its filename, and each pack entry listed by
// its index reconstructs to the id the index records. Verification of
// independent objects runs concurrently, bounded by the CPU count.
func (db *Database) Fsck(ctx context.Context) (*FsckSummary, error) {
	summary := &FsckSummary{}

	looseIDs, err := db.listLooseIDs()
	if err != nil {
		return nil, err
	}

	g, looseCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, id := range looseIDs {
		g.Go(func() error {
			if err := looseCtx.Err(); err != nil {
				return err
			}
			if _, _, err := db.readLoose(id); err != nil {
				return fmt.Errorf("fsck: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.LooseObjects = len(looseIDs)

	for _, p := range db.snapshotPacks(true) {
		n, err := db.fsckPack(ctx, p)
		if err != nil {
			return nil, err
		}
		summary.Packs++
		summary.PackedObjects += n
	}
	return summary, nil
}

// fsckPack checks the pack trailer against the index's recorded
// checksum, then reconstructs every indexed entry.
func (db *Database) fsckPack(ctx context.Context, p *Pack) (int, error) {
	var trailer ObjectID
	if _, err := p.f.ReadAt(trailer[:], p.size-packTrailerLen); err != nil {
		return 0, fmt.Errorf("fsck: read trailer of %s: %w", p.path, err)
	}
	if trailer != p.index.PackChecksum() {
		return 0, fmt.Errorf("fsck: pack %s trailer %s does not match index checksum %s: %w",
			p.path, trailer, p.index.PackChecksum(), ErrCorruptObject)
	}

	type work struct {
		id     ObjectID
		offset int64
	}
	jobs := make([]work, 0, p.index.ObjectCount())
	it := p.index.Iterator()
	for it.Next() {
		e := it.Entry()
		jobs = append(jobs, work{id: e.ID.Snapshot(), offset: int64(e.Offset)})
	}

	g, packCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, job := range jobs {
		g.Go(func() error {
			if err := packCtx.Err(); err != nil {
				return err
			}
			t, payload, err := p.read(job.offset, db, make(map[int64]struct{}))
			if err != nil {
				return fmt.Errorf("fsck: %s at %d: %w", job.id, job.offset, err)
			}
			digest := sha1.New()
			digest.Write(appendCanonicalHeader(nil, t, int64(len(payload))))
			digest.Write(payload)
			var actual ObjectID
			digest.Sum(actual[:0])
			if actual != job.id {
				return fmt.Errorf("fsck: pack %s offset %d holds %s, index says %s: %w",
					p.path, job.offset, actual, job.id, ErrCorruptObject)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(jobs), nil
}

// listLooseIDs walks the fan-out directories and returns every id with
// a plausible loose file, sorted.
func (db *Database) listLooseIDs() ([]ObjectID, error) {
	fanouts, err := os.ReadDir(db.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read objects dir: %w", err)
	}

	var ids []ObjectID
	for _, fan := range fanouts {
		if !fan.IsDir() || !isHexComponent(fan.Name(), 2) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(db.dir, fan.Name()))
		if err != nil {
			return nil, fmt.Errorf("read fan-out %s: %w", fan.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || !isHexComponent(f.Name(), HexLength-2) {
				continue
			}
			id, err := ParseObjectID(fan.Name() + f.Name())
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids, nil
}

func isHexComponent(s string, wantLen int) bool {
	if len(s) != wantLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
