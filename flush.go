package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// load reads the persisted record map and rebuilds the indices and the
// max-uid counter. Runs once, before the engine is shared, so no locking.
func (e *Engine) load() error {
	path := e.config.Store.UsersFile
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var persisted map[string]UserRecord
	if err := json.Unmarshal(data, &persisted); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	var maxUID uint32
	for key, rec := range persisted {
		uid64, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			// Entries with unparseable keys are skipped, matching the
			// loader's tolerance for hand-edited files.
			continue
		}
		uid := uint32(uid64)
		rec.UID = uid
		if rec.Profile == nil {
			rec.Profile = map[string]any{}
		}

		if err := e.usernames.Insert(rec.Username, uid); err != nil {
			return fmt.Errorf("duplicate username %q in %s", rec.Username, path)
		}
		if err := e.emails.Insert(rec.Email, uid); err != nil {
			return fmt.Errorf("duplicate email %q in %s", rec.Email, path)
		}
		e.users[uid] = rec
		if uid > maxUID {
			maxUID = uid
		}
	}
	e.maxUID.Store(maxUID)
	return nil
}

// flushLoop is the engine's single background task: on every tick it
// snapshots the record map to disk and sweeps expired tokens. It exits on
// Close after one final flush.
func (e *Engine) flushLoop() {
	defer e.flushWG.Done()

	ticker := time.NewTicker(e.config.Store.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flushOnce(context.Background())
			e.sweepTokens(context.Background())
		case <-e.flushDone:
			e.flushOnce(context.Background())
			return
		}
	}
}

// flushOnce writes the record map to the users file. The snapshot is taken
// under the read lock and serialized and written outside every lock, so
// foreground operations are never blocked on disk. Failures are logged and
// audited, never fatal.
func (e *Engine) flushOnce(ctx context.Context) {
	path := e.config.Store.UsersFile
	if path == "" {
		return
	}

	e.usersMu.RLock()
	snapshot := make(map[string]UserRecord, len(e.users))
	for uid, rec := range e.users {
		snapshot[strconv.FormatUint(uint64(uid), 10)] = rec
	}
	e.usersMu.RUnlock()

	if err := writeJSONFile(path, snapshot); err != nil {
		e.metricInc(MetricFlushFailure)
		e.log.Error("user flush failed", "path", path, "error", err)
		e.emitAudit(ctx, auditEventFlushFailure, false, 0, err, func() map[string]string {
			return map[string]string{"path": path}
		})
		return
	}
	e.metricInc(MetricFlushSuccess)
}

func (e *Engine) sweepTokens(ctx context.Context) {
	swept, err := e.tokens.Sweep(ctx)
	if err != nil {
		e.log.Error("token sweep failed", "error", err)
		return
	}
	if swept > 0 {
		e.metrics.Add(MetricTokensSwept, uint64(swept))
	}
}

// writeJSONFile writes v as JSON via a temp file and rename, so a crash
// mid-write never truncates the previous snapshot.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
