package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/lintang-b-s/roadgpkg/pkg/concurrent"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

const batchSize = 1000

// KVDB caches road network snapshots in badger. A snapshot is stored as one header entry plus
// one entry per lane, all under the key prefix of the source file fingerprint.
type KVDB struct {
	db *badger.DB
	lg *log.Logger
}

func NewKVDB(db *badger.DB, lg *log.Logger) *KVDB {
	return &KVDB{db: db, lg: lg}
}

// Open opens or creates a badger database in dir.
func Open(dir string, lg *log.Logger) (*KVDB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache %s: %w", dir, err)
	}
	return NewKVDB(db, lg), nil
}

// Fingerprint identifies a version of a GeoPackage file by absolute path, size and mtime.
func Fingerprint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s@%d@%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}

func headerKey(fp string) []byte {
	return []byte(fp + "/header")
}

func lanePrefix(fp string) []byte {
	return []byte(fp + "/lane/")
}

func laneKey(fp, laneID string) []byte {
	return append(lanePrefix(fp), laneID...)
}

type batchData struct {
	key   []byte
	value roadnetwork.LaneSnapshot
}

// SaveSnapshot replaces the snapshot stored under fp.
func (k *KVDB) SaveSnapshot(ctx context.Context, fp string, snap *roadnetwork.Snapshot) error {
	k.lg.Debug("saving road network snapshot...", "fingerprint", fp, "lanes", len(snap.Lanes))

	if err := k.db.DropPrefix([]byte(fp + "/")); err != nil {
		return err
	}

	batches := make([]batchData, 0, batchSize)
	for _, lane := range snap.Lanes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batches = append(batches, batchData{key: laneKey(fp, lane.ID), value: lane})
		if len(batches) == batchSize {
			if err := k.saveBatchLanes(ctx, batches); err != nil {
				return err
			}
			batches = make([]batchData, 0, batchSize)
		}
	}
	if len(batches) > 0 {
		if err := k.saveBatchLanes(ctx, batches); err != nil {
			return err
		}
	}

	// the header goes last so a partially written snapshot is never found.
	header := *snap
	header.Lanes = nil
	val, err := encodeSnapshotHeader(header)
	if err != nil {
		return err
	}
	err = k.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headerKey(fp), val)
	})
	if err != nil {
		return err
	}

	k.lg.Debug("saving road network snapshot done", "fingerprint", fp)
	return nil
}

type encodedLane struct {
	key []byte
	val []byte
	err error
}

func encodeLaneJob(job concurrent.Job[batchData]) concurrent.Job[encodedLane] {
	val, err := encodeLane(job.JobItem.value)
	return concurrent.Job[encodedLane]{ID: job.ID, JobItem: encodedLane{key: job.JobItem.key, val: val, err: err}}
}

// saveBatchLanes encodes and compresses the lanes on a worker pool, then writes them in input order.
func (k *KVDB) saveBatchLanes(ctx context.Context, lanes []batchData) error {
	workers := concurrent.NewWorkerPool[concurrent.Job[batchData], concurrent.Job[encodedLane]](
		runtime.NumCPU(), len(lanes))
	for i, data := range lanes {
		workers.AddJob(concurrent.Job[batchData]{ID: i, JobItem: data})
	}
	workers.Close()
	workers.Start(encodeLaneJob)
	workers.Wait()

	encoded := make([]encodedLane, len(lanes))
	for res := range workers.CollectResults() {
		encoded[res.ID] = res.JobItem
	}

	batch := k.db.NewWriteBatch()
	defer batch.Cancel()

	for _, e := range encoded {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if e.err != nil {
			return fmt.Errorf("encode lane %s: %w", e.key, e.err)
		}
		if err := batch.Set(e.key, e.val); err != nil {
			return err
		}
	}

	if err := batch.Flush(); err != nil {
		return fmt.Errorf("save %d lanes: %w", len(lanes), err)
	}
	return nil
}

func (k *KVDB) get(key []byte) ([]byte, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

// LoadSnapshot returns the snapshot stored under fp, or ErrSnapshotNotFound.
func (k *KVDB) LoadSnapshot(ctx context.Context, fp string) (*roadnetwork.Snapshot, error) {
	val, err := k.get(headerKey(fp))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	header, err := decodeSnapshotHeader(val)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot header: %w", err)
	}
	snap := &header

	prefix := lanePrefix(fp)
	err = k.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			bb, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			lane, err := decodeLane(bb)
			if err != nil {
				return fmt.Errorf("decode lane %s: %w", item.Key(), err)
			}
			snap.Lanes = append(snap.Lanes, lane)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadRoadNetwork rebuilds the road network cached for fp.
func (k *KVDB) LoadRoadNetwork(ctx context.Context, fp string) (*roadnetwork.RoadNetwork, error) {
	snap, err := k.LoadSnapshot(ctx, fp)
	if err != nil {
		return nil, err
	}
	return roadnetwork.FromSnapshot(snap)
}

// DeleteSnapshot drops everything stored under fp.
func (k *KVDB) DeleteSnapshot(fp string) error {
	return k.db.DropPrefix([]byte(fp + "/"))
}

func (k *KVDB) Close() error {
	return k.db.Close()
}

// LoadOrBuild returns the cached road network for the current version of the file at path. On a
// cache miss it parses the file and stores a fresh snapshot. The returned bool reports a cache hit.
func (k *KVDB) LoadOrBuild(ctx context.Context, path string) (*roadnetwork.RoadNetwork, bool, error) {
	fp, err := Fingerprint(path)
	if err != nil {
		return nil, false, err
	}

	rn, err := k.LoadRoadNetwork(ctx, fp)
	if err == nil {
		k.lg.Info("road network loaded from cache", "file", path, "lanes", rn.Stats().Lanes)
		return rn, true, nil
	}
	if !errors.Is(err, ErrSnapshotNotFound) {
		k.lg.Warn("discarding unreadable snapshot", "fingerprint", fp, "err", err)
		if err := k.DeleteSnapshot(fp); err != nil {
			return nil, false, err
		}
	}

	rn, err = roadnetwork.Load(path, k.lg)
	if err != nil {
		return nil, false, err
	}
	if err := k.SaveSnapshot(ctx, fp, rn.ToSnapshot()); err != nil {
		return nil, false, fmt.Errorf("cache road network: %w", err)
	}
	return rn, false, nil
}
