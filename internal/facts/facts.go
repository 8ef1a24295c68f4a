// Package facts implements the summary database: the cross-function store
// of return_states, caller_info, return_implies, and function_ptr tables
// that lets the engine's second pass resolve call-site summaries computed
// during the first. Backed by modernc.org/sqlite (pure Go, no cgo) through
// database/sql; facts are appended during one function's walk and become
// visible when a later function (or a later pass) looks them up.
package facts

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// FactType is one of a fixed catalog of symbolic tags describing what a
// (param, key, value) triple asserts.
type FactType string

const (
	ParamSet      FactType = "PARAM_SET"
	ParamCleared  FactType = "PARAM_CLEARED"
	Lock2         FactType = "LOCK2"
	Unlock2       FactType = "UNLOCK2"
	UserData3     FactType = "USER_DATA3"
	Container     FactType = "CONTAINER"
	NegativeError FactType = "NEGATIVE_ERROR"
	Fget          FactType = "FGET"
	BufSize       FactType = "BUF_SIZE"
	Released      FactType = "RELEASED"

	// ReturnValue rows carry only the literal return-value range-list for
	// one return site; the driver writes one per return so callers can
	// sharpen a call expression's value on the next pass.
	ReturnValue FactType = "RETURN_VALUE"
)

// funcKey identifies a function for table lookups, scoped by file for
// static functions so separately-compiled statics of the same name in
// different translation units never collide.
type funcKey struct {
	File     string
	Function string
	Static   bool
}

func (k funcKey) fileScope() string {
	if k.Static {
		return k.File
	}
	return ""
}

// ReturnStateFact is one row of return_states: a fact that holds when
// Function returns a value in ReturnRanges.
type ReturnStateFact struct {
	ReturnID     int
	ReturnRanges string
	Type         FactType
	Param        int
	Key          string
	Value        string
}

// CallerInfoFact is one row of caller_info: a fact to inject into the
// callee's initial stree at the start of its walk.
type CallerInfoFact struct {
	CallID int
	Type   FactType
	Param  int
	Key    string
	Value  string
}

// ReturnImpliesFact is one row of return_implies: a fact activated at a
// call site only when the return value falls within [RangeStart,RangeEnd].
type ReturnImpliesFact struct {
	RangeStart, RangeEnd string
	Type                 FactType
	Param                int
	Key                  string
	Value                string
}

// DB is the process-wide fact database: written only by the driver and by
// checkers running under its supervision, including while functions are
// walked (checkers insert facts at END_FUNC). Mutations are appended and
// become visible on the next lookup.
type DB struct {
	sql *sql.DB
}

// Open creates (or reopens) the fact database at path. ":memory:" gives an
// ephemeral database whose facts last for the life of the process, which
// covers both passes of a --two-pass run; a real path keeps them on disk.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("facts: open %s: %w", path, err)
	}
	d := &DB{sql: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS return_states (
			file TEXT, function TEXT, static INTEGER, file_scope TEXT,
			return_id INTEGER, return_ranges TEXT,
			type TEXT, param INTEGER, key TEXT, value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS caller_info (
			file TEXT, function TEXT, static INTEGER, file_scope TEXT,
			call_id INTEGER,
			type TEXT, param INTEGER, key TEXT, value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS return_implies (
			file TEXT, function TEXT, static INTEGER, file_scope TEXT,
			range_start TEXT, range_end TEXT,
			type TEXT, param INTEGER, key TEXT, value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS function_ptr (
			member_path TEXT, function_name TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_return_states_fn ON return_states(function, file_scope)`,
		`CREATE INDEX IF NOT EXISTS idx_caller_info_fn ON caller_info(function, file_scope)`,
		`CREATE INDEX IF NOT EXISTS idx_return_implies_fn ON return_implies(function, file_scope)`,
	}
	for _, s := range stmts {
		if _, err := d.sql.Exec(s); err != nil {
			return fmt.Errorf("facts: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (d *DB) Close() error { return d.sql.Close() }

// InsertReturnState appends one return_states row.
func (d *DB) InsertReturnState(file, function string, static bool, f ReturnStateFact) error {
	k := funcKey{File: file, Function: function, Static: static}
	_, err := d.sql.Exec(
		`INSERT INTO return_states(file, function, static, file_scope, return_id, return_ranges, type, param, key, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file, function, static, k.fileScope(), f.ReturnID, f.ReturnRanges, string(f.Type), f.Param, f.Key, f.Value)
	return err
}

// InsertCallerInfo appends one caller_info row.
func (d *DB) InsertCallerInfo(file, function string, static bool, f CallerInfoFact) error {
	k := funcKey{File: file, Function: function, Static: static}
	_, err := d.sql.Exec(
		`INSERT INTO caller_info(file, function, static, file_scope, call_id, type, param, key, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file, function, static, k.fileScope(), f.CallID, string(f.Type), f.Param, f.Key, f.Value)
	return err
}

// InsertReturnImplies appends one return_implies row.
func (d *DB) InsertReturnImplies(file, function string, static bool, f ReturnImpliesFact) error {
	k := funcKey{File: file, Function: function, Static: static}
	_, err := d.sql.Exec(
		`INSERT INTO return_implies(file, function, static, file_scope, range_start, range_end, type, param, key, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file, function, static, k.fileScope(), f.RangeStart, f.RangeEnd, string(f.Type), f.Param, f.Key, f.Value)
	return err
}

// InsertFunctionPtr records a struct-member -> function-name binding.
func (d *DB) InsertFunctionPtr(memberPath, functionName string) error {
	_, err := d.sql.Exec(`INSERT INTO function_ptr(member_path, function_name) VALUES (?, ?)`, memberPath, functionName)
	return err
}

// SelectReturnStates calls cb once per return_states row recorded for
// (file, function), used when resolving a call site's effects. file is
// only consulted when the callee is static.
func (d *DB) SelectReturnStates(file, function string, static bool, cb func(ReturnStateFact)) error {
	k := funcKey{File: file, Function: function, Static: static}
	rows, err := d.sql.Query(
		`SELECT return_id, return_ranges, type, param, key, value FROM return_states
		 WHERE function = ? AND file_scope = ? ORDER BY return_id`,
		function, k.fileScope())
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f ReturnStateFact
		var typ string
		if err := rows.Scan(&f.ReturnID, &f.ReturnRanges, &typ, &f.Param, &f.Key, &f.Value); err != nil {
			return err
		}
		f.Type = FactType(typ)
		cb(f)
	}
	return rows.Err()
}

// SelectCallerInfo calls cb once per caller_info row recorded for (file,
// function), used to seed a callee's initial stree.
func (d *DB) SelectCallerInfo(file, function string, static bool, cb func(CallerInfoFact)) error {
	k := funcKey{File: file, Function: function, Static: static}
	rows, err := d.sql.Query(
		`SELECT call_id, type, param, key, value FROM caller_info
		 WHERE function = ? AND file_scope = ? ORDER BY call_id`,
		function, k.fileScope())
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f CallerInfoFact
		var typ string
		if err := rows.Scan(&f.CallID, &typ, &f.Param, &f.Key, &f.Value); err != nil {
			return err
		}
		f.Type = FactType(typ)
		cb(f)
	}
	return rows.Err()
}

// SelectReturnImplies calls cb once per return_implies row recorded for
// (file, function).
func (d *DB) SelectReturnImplies(file, function string, static bool, cb func(ReturnImpliesFact)) error {
	k := funcKey{File: file, Function: function, Static: static}
	rows, err := d.sql.Query(
		`SELECT range_start, range_end, type, param, key, value FROM return_implies
		 WHERE function = ? AND file_scope = ?`,
		function, k.fileScope())
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f ReturnImpliesFact
		var typ string
		if err := rows.Scan(&f.RangeStart, &f.RangeEnd, &typ, &f.Param, &f.Key, &f.Value); err != nil {
			return err
		}
		f.Type = FactType(typ)
		cb(f)
	}
	return rows.Err()
}

// SelectFunctionPtr resolves the function name bound to memberPath, if any
// assignment to that struct member was ever observed.
func (d *DB) SelectFunctionPtr(memberPath string) (string, bool, error) {
	row := d.sql.QueryRow(`SELECT function_name FROM function_ptr WHERE member_path = ? LIMIT 1`, memberPath)
	var name string
	switch err := row.Scan(&name); err {
	case nil:
		return name, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, err
	}
}
