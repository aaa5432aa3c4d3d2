package report

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/timing/hierarchy"
)

type requestRow struct {
	seq    uint64
	req    hierarchy.Request
	result hierarchy.AccessResult
}

// SQLiteRecorder stores every completed request of a run in a SQLite
// database. Rows are buffered and inserted in batches.
type SQLiteRecorder struct {
	*sql.DB
	statement *sql.Stmt

	dbName    string
	runID     string
	seq       uint64
	rows      []requestRow
	batchSize int
}

// NewSQLiteRecorder creates a recorder writing to path. An empty path picks
// a unique name in the working directory.
func NewSQLiteRecorder(path string) *SQLiteRecorder {
	return &SQLiteRecorder{
		dbName:    path,
		runID:     xid.New().String(),
		batchSize: 100000,
	}
}

// Init creates the database and its tables. It fails if the file exists.
// Once the database is open, buffered rows are also flushed at exit unless
// the recorder was closed first.
func (r *SQLiteRecorder) Init() error {
	if r.dbName == "" {
		r.dbName = "memsim_" + r.runID + ".sqlite3"
	}

	if _, err := os.Stat(r.dbName); err == nil {
		return fmt.Errorf("file %s already exists", r.dbName)
	}

	db, err := sql.Open("sqlite3", r.dbName)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	r.DB = db

	atexit.Register(func() { r.Flush() })

	if err := r.createTables(); err != nil {
		return err
	}

	r.statement, err = r.Prepare(`INSERT INTO request VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	return err
}

// Path returns the database file name.
func (r *SQLiteRecorder) Path() string {
	return r.dbName
}

// RunID returns the identifier stored with every row of this run.
func (r *SQLiteRecorder) RunID() string {
	return r.runID
}

// Record buffers one completed request.
func (r *SQLiteRecorder) Record(req hierarchy.Request, result hierarchy.AccessResult) {
	r.rows = append(r.rows, requestRow{seq: r.seq, req: req, result: result})
	r.seq++

	if len(r.rows) >= r.batchSize {
		r.Flush()
	}
}

// Flush writes all buffered rows to the database.
func (r *SQLiteRecorder) Flush() {
	if len(r.rows) == 0 || r.DB == nil {
		return
	}

	tx, err := r.Begin()
	if err != nil {
		panic(fmt.Errorf("failed to begin transaction: %w", err))
	}
	stmt := tx.Stmt(r.statement)

	for _, row := range r.rows {
		_, err := stmt.Exec(
			r.runID,
			row.seq,
			row.req.Op.String(),
			row.req.Address,
			row.req.Length(),
			row.result.Outcome.String(),
			row.result.L1.String(),
			row.result.L2.String(),
			row.result.Cycles,
			row.result.Writebacks,
		)
		if err != nil {
			_ = tx.Rollback()
			panic(fmt.Errorf("failed to insert request %d: %w", row.seq, err))
		}
	}

	if err := tx.Commit(); err != nil {
		panic(fmt.Errorf("failed to commit requests: %w", err))
	}

	r.rows = nil
}

// Close flushes and closes the database.
func (r *SQLiteRecorder) Close() error {
	if r.DB == nil {
		return nil
	}

	r.Flush()

	db := r.DB
	r.DB = nil
	r.rows = nil

	if err := r.statement.Close(); err != nil {
		_ = db.Close()
		return err
	}

	return db.Close()
}

func (r *SQLiteRecorder) createTables() error {
	_, err := r.Exec(`
		create table request
		(
			run_id     varchar(20)  not null,
			seq        integer      not null,
			op         varchar(8)   not null,
			address    integer      not null,
			size       integer      not null,
			outcome    varchar(20)  not null,
			l1         varchar(20)  not null,
			l2         varchar(20)  not null,
			cycles     integer      not null,
			writebacks integer      not null
		);
	`)
	if err != nil {
		return err
	}

	_, err = r.Exec(`
		create index request_outcome_index
			on request (outcome);
	`)

	return err
}
