// Package reports implements the append-only check report store. One JSONL
// file per plan line is the source of truth; a SQLite index, rebuilt on
// attach, serves latest/history queries. No delete or update operation
// exists, so the audit trail stays complete even when a checker later
// reverses its verdict.
package reports

import (
	"bufio"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/greenledger/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// Storage layout under the store root.
const (
	// DirName is the reports directory, one JSONL file per plan line.
	DirName = "reports"

	// indexDBName is the rebuilt SQLite query index.
	indexDBName = "reports.db"
)

// Store is the append-only check report store for one storage root.
type Store struct {
	mu       sync.RWMutex
	attached bool
	root     string
	db       *sql.DB
}

// NewStore creates an unattached report store; call Attach with a Config.
func NewStore() *Store {
	return &Store{}
}

// Attach opens the store at cfg.StoreDir and rebuilds the SQLite index from
// the JSONL files. The reports directory must already exist; bootstrap is a
// separate step.
func (s *Store) Attach(cfg types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reportsDir := filepath.Join(cfg.StoreDir, DirName)
	if _, err := os.Stat(reportsDir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", types.ErrStoreNotInitialized, reportsDir)
		}
		return fmt.Errorf("stat %s: %w", reportsDir, err)
	}

	// The index is disposable: always rebuild from the JSONL files.
	dbPath := filepath.Join(cfg.StoreDir, indexDBName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open report index: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("init report index schema: %w", err)
	}

	s.root = cfg.StoreDir
	s.db = db
	s.attached = true

	if err := s.reindex(); err != nil {
		s.db.Close()
		s.attached = false
		return err
	}
	return nil
}

// Detach closes the index. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	s.attached = false
	return s.db.Close()
}

// Append records a new check report for a plan line. The report is appended
// to the plan line's JSONL file first, then indexed; a new report supersedes
// but never deletes prior ones.
func (s *Store) Append(planLineID string, findings []types.Finding) (types.CheckReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.CheckReport{}, types.ErrStoreDetached
	}
	if !types.ValidPlanLineID(planLineID) {
		return types.CheckReport{}, fmt.Errorf("%w: %q", types.ErrInvalidPlanLineID, planLineID)
	}
	for _, f := range findings {
		if !types.ValidLevel(f.Level) {
			return types.CheckReport{}, fmt.Errorf("append report for %s: invalid finding level %q",
				planLineID, f.Level)
		}
	}

	var seq int
	row := s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM check_reports WHERE plan_line_id = ?`, planLineID)
	if err := row.Scan(&seq); err != nil {
		return types.CheckReport{}, fmt.Errorf("next seq for %s: %w", planLineID, err)
	}

	report := types.CheckReport{
		PlanLineID: planLineID,
		Seq:        seq + 1,
		Findings:   findings,
		ProducedAt: time.Now().UTC(),
	}

	line, err := json.Marshal(report)
	if err != nil {
		return types.CheckReport{}, fmt.Errorf("marshal report for %s: %w", planLineID, err)
	}
	f, err := os.OpenFile(s.reportPath(planLineID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return types.CheckReport{}, fmt.Errorf("open report file for %s: %w", planLineID, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return types.CheckReport{}, fmt.Errorf("append report for %s: %w", planLineID, err)
	}
	if err := f.Close(); err != nil {
		return types.CheckReport{}, fmt.Errorf("close report file for %s: %w", planLineID, err)
	}

	if err := s.index(report); err != nil {
		return types.CheckReport{}, err
	}
	return report, nil
}

// Latest returns the most recent report for a plan line.
func (s *Store) Latest(planLineID string) (types.CheckReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return types.CheckReport{}, types.ErrStoreDetached
	}
	row := s.db.QueryRow(
		`SELECT seq, produced_at, findings FROM check_reports WHERE plan_line_id = ? ORDER BY seq DESC LIMIT 1`,
		planLineID)
	report, err := scanReport(planLineID, row.Scan)
	if err == sql.ErrNoRows {
		return types.CheckReport{}, fmt.Errorf("%w: plan line %s", types.ErrNoReports, planLineID)
	}
	return report, err
}

// History returns every report for a plan line, oldest first.
func (s *Store) History(planLineID string) ([]types.CheckReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	rows, err := s.db.Query(
		`SELECT seq, produced_at, findings FROM check_reports WHERE plan_line_id = ? ORDER BY seq ASC`,
		planLineID)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", planLineID, err)
	}
	defer rows.Close()

	var history []types.CheckReport
	for rows.Next() {
		report, err := scanReport(planLineID, rows.Scan)
		if err != nil {
			return nil, err
		}
		history = append(history, report)
	}
	return history, rows.Err()
}

func (s *Store) reportPath(planLineID string) string {
	return filepath.Join(s.root, DirName, planLineID+".jsonl")
}

// reindex loads every JSONL report file into the SQLite index. Malformed
// lines are skipped; the files remain the source of truth.
func (s *Store) reindex() error {
	entries, err := os.ReadDir(filepath.Join(s.root, DirName))
	if err != nil {
		return fmt.Errorf("read reports dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		if err := s.reindexFile(filepath.Join(s.root, DirName, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) reindexFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var report types.CheckReport
		if err := json.Unmarshal(line, &report); err != nil {
			continue
		}
		if err := s.index(report); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Store) index(report types.CheckReport) error {
	findings, err := json.Marshal(report.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings for %s: %w", report.PlanLineID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO check_reports (plan_line_id, seq, produced_at, findings) VALUES (?, ?, ?, ?)`,
		report.PlanLineID, report.Seq, report.ProducedAt.Format(time.RFC3339Nano), string(findings))
	if err != nil {
		return fmt.Errorf("index report %s/%d: %w", report.PlanLineID, report.Seq, err)
	}
	return nil
}

func scanReport(planLineID string, scan func(...any) error) (types.CheckReport, error) {
	var (
		seq        int
		producedAt string
		findings   string
	)
	if err := scan(&seq, &producedAt, &findings); err != nil {
		return types.CheckReport{}, err
	}
	report := types.CheckReport{PlanLineID: planLineID, Seq: seq}
	ts, err := time.Parse(time.RFC3339Nano, producedAt)
	if err != nil {
		return types.CheckReport{}, fmt.Errorf("parse produced_at for %s: %w", planLineID, err)
	}
	report.ProducedAt = ts
	if err := json.Unmarshal([]byte(findings), &report.Findings); err != nil {
		return types.CheckReport{}, fmt.Errorf("unmarshal findings for %s: %w", planLineID, err)
	}
	return report, nil
}
