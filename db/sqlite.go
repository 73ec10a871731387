package db

import (
	"database/sql"
	"fmt"
	"os"
	"sort"
	"time"

	// Include SQLite3 for database.
	_ "github.com/mattn/go-sqlite3"

	"github.com/pivotal-cf/protogate/probe"
)

type Database struct {
	db *sql.DB
}

func (d *Database) DB() *sql.DB {
	return d.db
}

func OpenOrCreateDatabase(path string) (*Database, error) {
	_, err := os.Stat(path)

	if os.IsNotExist(err) {
		return CreateDatabase(path)
	} else {
		return OpenDatabase(path)
	}
}

func CreateDatabase(path string) (*Database, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("database %s already exists", path)
	}

	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = database.Exec(createDDL, SchemaVersion)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &Database{db: database}, nil
}

func OpenDatabase(path string) (*Database, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	database := &Database{db: db}

	version := database.Version()

	if version != SchemaVersion {
		db.Close()
		return nil, fmt.Errorf("The database version (%d) does not match latest version (%d). Please create a new database.", version, SchemaVersion)
	}

	return database, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Version() int {
	rows, err := db.db.Query("SELECT version FROM version")
	if err != nil {
		return 0
	}

	defer rows.Close()

	hasRow := rows.Next()
	if !hasRow {
		return 0
	}

	var version int
	rows.Scan(&version)

	return version
}

// SaveProbe stores one probe run covering results and returns its id.
func (db *Database) SaveProbe(results []probe.Result) (int64, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO probes(timestamp) VALUES (?)", time.Now())
	if err != nil {
		return 0, err
	}

	probeID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, result := range results {
		res, err := tx.Exec(
			"INSERT INTO endpoints(probe_id, host, port, mutual) VALUES (?, ?, ?, ?)",
			probeID, result.Host, result.Port, result.HasMutual(),
		)
		if err != nil {
			return 0, err
		}

		endpointID, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}

		versions := make([]probe.VersionResult, 0, len(result.Versions))
		for _, vr := range result.Versions {
			versions = append(versions, vr)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })

		for _, vr := range versions {
			var probeErr sql.NullString
			if vr.Err != nil {
				probeErr = sql.NullString{String: vr.Err.Error(), Valid: true}
			}

			_, err = tx.Exec(`
			INSERT INTO protocol_results (
				endpoint_id,
				version,
				wire_version,
				accepted,
				detail,
				probe_error
			) VALUES (?, ?, ?, ?, ?, ?)`,
				endpointID,
				vr.Version.String(),
				int(vr.Version),
				vr.Accepted,
				vr.Detail,
				probeErr,
			)
			if err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return probeID, nil
}

// LatestProbeID returns the most recent probe run, or sql.ErrNoRows.
func (db *Database) LatestProbeID() (int64, error) {
	var id int64
	err := db.db.QueryRow("SELECT id FROM probes ORDER BY id DESC LIMIT 1").Scan(&id)
	return id, err
}
