package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	// Blind import support for sqlite3 used by the default history store.
	_ "github.com/mattn/go-sqlite3"

	"github.com/hb9tf/cellscan/band"
	"github.com/hb9tf/cellscan/scan"
)

const (
	sqlCreateJobsTmpl = `CREATE TABLE IF NOT EXISTS jobs (
		"ID"         INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"RunID"      TEXT NOT NULL,
		"ScanID"     TEXT NOT NULL,
		"JobIndex"   INTEGER,
		"Kind"       TEXT NOT NULL,
		"BandKey"    TEXT NOT NULL,
		"Provider"   TEXT NOT NULL,
		"Region"     TEXT,
		"FreqStart"  INTEGER,
		"FreqEnd"    INTEGER,
		"Target"     INTEGER,
		"Status"     TEXT NOT NULL,
		"Message"    TEXT,
		"LogFile"    TEXT,
		"Artifact"   TEXT,
		"Started"    INTEGER,
		"Ended"      INTEGER
	);`
	sqlCreateCellsTmpl = `CREATE TABLE IF NOT EXISTS cells (
		"ID"                INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"RunID"             TEXT NOT NULL,
		"ScanID"            TEXT NOT NULL,
		"BandKey"           TEXT NOT NULL,
		"Provider"          TEXT NOT NULL,
		"CellID"            INTEGER,
		"Duplex"            TEXT,
		"AntennaPorts"      TEXT,
		"FreqCenter"        INTEGER,
		"FreqOffset"        INTEGER,
		"RxPower"           REAL,
		"CPType"            TEXT,
		"NRB"               INTEGER,
		"PHICHDuration"     TEXT,
		"PHICHResource"     TEXT,
		"CrystalCorrection" REAL,
		"Seen"              INTEGER
	);`

	sqlInsertJobTmpl = `INSERT INTO jobs (
		RunID, ScanID, JobIndex, Kind, BandKey, Provider, Region, FreqStart, FreqEnd, Target,
		Status, Message, LogFile, Artifact, Started, Ended
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	sqlInsertCellTmpl = `INSERT INTO cells (
		RunID, ScanID, BandKey, Provider, CellID, Duplex, AntennaPorts, FreqCenter, FreqOffset,
		RxPower, CPType, NRB, PHICHDuration, PHICHResource, CrystalCorrection, Seen
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	sqlSelectDoneTmpl = `SELECT DISTINCT BandKey FROM jobs WHERE ScanID = ? AND Kind = 'full' AND Status = 'done';`
	sqlSelectJobsTmpl = `SELECT
		RunID, JobIndex, Kind, BandKey, Provider, Region, FreqStart, FreqEnd, Target,
		Status, Message, LogFile, Artifact, Started, Ended
	FROM jobs WHERE ScanID = ? ORDER BY Started ASC, ID ASC;`
	sqlSelectCellsTmpl = `SELECT
		BandKey, Provider, CellID, Duplex, AntennaPorts, FreqCenter, FreqOffset, RxPower,
		CPType, NRB, PHICHDuration, PHICHResource, CrystalCorrection, Seen
	FROM cells WHERE ScanID = ? ORDER BY Seen ASC, ID ASC;`
	sqlCountRunTmpl    = `SELECT COUNT(*) FROM jobs WHERE RunID = ?;`
	sqlSelectScansTmpl = `SELECT ScanID, COUNT(DISTINCT RunID), MAX(Ended) FROM jobs GROUP BY ScanID ORDER BY ScanID;`
)

// ErrDuplicateRun means the history already holds a run with the same id.
var ErrDuplicateRun = errors.New("run already stored")

// dialect holds the statements that differ between database engines.
type dialect struct {
	createJobs  string
	createCells string
}

var sqliteDialect = dialect{createJobs: sqlCreateJobsTmpl, createCells: sqlCreateCellsTmpl}

// SQL is the history store: it records every job and cell of a run and serves
// them back to the planner, the CLI and the status server.
type SQL struct {
	DB *sql.DB

	dialect dialect
}

// Open connects to the history store. driver is "sqlite3" or "mysql".
func Open(driver, dsn string) (*SQL, error) {
	switch driver {
	case "sqlite3":
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("unable to open sqlite DB %q: %s", dsn, err)
		}
		return &SQL{DB: db, dialect: sqliteDialect}, nil
	case "mysql":
		return openMySQL(dsn)
	}
	return nil, fmt.Errorf("%q is not a supported history driver, pick one of: sqlite3, mysql", driver)
}

func (s *SQL) Name() string { return "sql" }

func (s *SQL) Close() error { return s.DB.Close() }

// Init creates the tables unless they exist.
func (s *SQL) Init(ctx context.Context) error {
	for _, stmt := range []string{s.dialect.createJobs, s.dialect.createCells} {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("unable to create table: %s", err)
		}
	}
	return nil
}

func (s *SQL) Export(ctx context.Context, sum *scan.Summary) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stored int
	if err := tx.QueryRowContext(ctx, sqlCountRunTmpl, sum.RunID).Scan(&stored); err != nil {
		return fmt.Errorf("unable to look up run %s: %s", sum.RunID, err)
	}
	if stored > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateRun, sum.RunID)
	}

	insertJob, err := tx.PrepareContext(ctx, sqlInsertJobTmpl)
	if err != nil {
		return err
	}
	defer insertJob.Close()
	insertCell, err := tx.PrepareContext(ctx, sqlInsertCellTmpl)
	if err != nil {
		return err
	}
	defer insertCell.Close()

	counts := map[string]int{
		"jobs":  0,
		"cells": 0,
	}
	for _, r := range sum.Results {
		j := r.Job
		artifact := ""
		if len(r.Artifacts) > 0 {
			artifact = r.Artifacts[0]
		}
		if _, err := insertJob.ExecContext(ctx, sum.RunID, j.ScanID, j.Index, string(j.Kind), j.Band.Key(),
			string(j.Band.Provider), j.Band.Region, j.Start, j.End, j.Target, string(r.Status), r.Message,
			r.LogFile, artifact, r.Started.UnixMilli(), r.Ended.UnixMilli()); err != nil {
			return fmt.Errorf("unable to store %s: %s", j, err)
		}
		counts["jobs"] += 1

		for _, c := range r.Cells {
			if _, err := insertCell.ExecContext(ctx, sum.RunID, c.ScanID, c.BandKey, string(c.Provider), c.CellID,
				c.Duplex, c.AntennaPorts, c.FreqCenter, c.FreqOffset, c.RxPower, c.CPType, c.NRB,
				c.PHICHDuration, c.PHICHResource, c.CrystalCorrection, c.Seen.UnixMilli()); err != nil {
				return fmt.Errorf("unable to store %s: %s", c, err)
			}
			counts["cells"] += 1
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	glog.Infof("History export counts: %+v\n", counts)
	return nil
}

// History returns the bands completed and cells found for scanID. It
// implements plan.HistoryReader.
func (s *SQL) History(ctx context.Context, scanID string) (*scan.History, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, sqlSelectDoneTmpl, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	h := &scan.History{Completed: map[string]bool{}}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		h.Completed[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	h.Cells, err = s.Cells(ctx, scanID)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// JobRecord is one stored job.
type JobRecord struct {
	RunID    string        `json:"run_id"`
	Index    int           `json:"index"`
	Kind     scan.Kind     `json:"kind"`
	BandKey  string        `json:"band_key"`
	Provider band.Provider `json:"provider"`
	Region   string        `json:"region"`
	Start    int64         `json:"freq_start"`
	End      int64         `json:"freq_end"`
	Target   int64         `json:"target,omitempty"`
	Status   scan.State    `json:"status"`
	Message  string        `json:"message,omitempty"`
	LogFile  string        `json:"log_file,omitempty"`
	Artifact string        `json:"artifact,omitempty"`
	Started  time.Time     `json:"started"`
	Ended    time.Time     `json:"ended"`
}

// Jobs lists the stored jobs of scanID, oldest first.
func (s *SQL) Jobs(ctx context.Context, scanID string) ([]JobRecord, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, sqlSelectJobsTmpl, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		var kind, provider, status string
		var region, message, logFile, artifact sql.NullString
		var start, end int64
		if err := rows.Scan(&j.RunID, &j.Index, &kind, &j.BandKey, &provider, &region, &j.Start, &j.End, &j.Target,
			&status, &message, &logFile, &artifact, &start, &end); err != nil {
			return nil, err
		}
		j.Kind = scan.Kind(kind)
		j.Provider = band.Provider(provider)
		j.Status = scan.State(status)
		j.Region, j.Message, j.LogFile, j.Artifact = region.String, message.String, logFile.String, artifact.String
		j.Started = time.UnixMilli(start)
		j.Ended = time.UnixMilli(end)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Cells lists the stored cells of scanID, oldest first.
func (s *SQL) Cells(ctx context.Context, scanID string) ([]scan.Cell, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, sqlSelectCellsTmpl, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []scan.Cell
	for rows.Next() {
		c := scan.Cell{ScanID: scanID}
		var provider string
		var seen int64
		if err := rows.Scan(&c.BandKey, &provider, &c.CellID, &c.Duplex, &c.AntennaPorts, &c.FreqCenter, &c.FreqOffset,
			&c.RxPower, &c.CPType, &c.NRB, &c.PHICHDuration, &c.PHICHResource, &c.CrystalCorrection, &seen); err != nil {
			return nil, err
		}
		c.Provider = band.Provider(provider)
		c.Seen = time.UnixMilli(seen)
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// ScanRecord summarizes the stored runs of one scan id.
type ScanRecord struct {
	ScanID   string    `json:"scan_id"`
	Runs     int       `json:"runs"`
	LastSeen time.Time `json:"last_seen"`
}

// Scans lists every scan id in the store.
func (s *SQL) Scans(ctx context.Context) ([]ScanRecord, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, sqlSelectScansTmpl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []ScanRecord
	for rows.Next() {
		var r ScanRecord
		var last int64
		if err := rows.Scan(&r.ScanID, &r.Runs, &last); err != nil {
			return nil, err
		}
		r.LastSeen = time.UnixMilli(last)
		scans = append(scans, r)
	}
	return scans, rows.Err()
}
