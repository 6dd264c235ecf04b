package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/jmoiron/sqlx"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/random"
	"log/slog"
	"strings"
)

// migrateTo makes the database schema match target declaratively:
//
//  1. tables missing from target are dropped,
//  2. tables missing from the database are created,
//  3. changed tables are rebuilt with the 12-step procedure of https://www.sqlite.org/lang_altertable.html#otheralter
//     keeping the data of the columns both versions share,
//  4. indexes, triggers and views are dropped and recreated wherever their SQL differs.
//
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrateTo(ctx context.Context, target string) (err error) {
	// The read-write pool has a single connection. Pin it so that the pragma, the attachment and the transaction
	// share it.
	var conn *sqlx.Conn
	if conn, err = db.ReadWrite.Connx(ctx); err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		err = errors.Join(err, errors.Wrap(conn.Close(), "release connection"))
	}()

	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign keys")
	}
	defer func() {
		if _, fkErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, errors.Wrap(fkErr, "enable foreign keys"))
		}
	}()

	// The target schema is materialised in a scratch in-memory database that is attached to the connection.
	var name string
	if name, err = random.Letters(20); err != nil { //nolint:mnd // name length
		return errors.Wrap(err, "generate schema target name")
	}
	targetDSN := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	var targetDB *sql.DB
	if targetDB, err = sql.Open("sqlite3", targetDSN); err != nil {
		return errors.Wrap(err, "open schema target")
	}
	defer func() {
		err = errors.Join(err, errors.Wrap(targetDB.Close(), "close schema target"))
	}()
	if _, err = targetDB.ExecContext(ctx, target); err != nil {
		return errors.Wrap(err, "apply target schema")
	}
	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS target", targetDSN); err != nil {
		return errors.Wrap(err, "attach schema target")
	}
	defer func() {
		if _, detachErr := conn.ExecContext(ctx, "DETACH DATABASE target"); detachErr != nil {
			err = errors.Join(err, errors.Wrap(detachErr, "detach schema target"))
		}
	}()

	var tx *sqlx.Tx
	if tx, err = conn.BeginTxx(ctx, nil); err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, errors.Wrap(rbErr, "rollback"))
		}
	}()

	if err = db.syncTables(ctx, tx); err != nil {
		return errors.Wrap(err, "sync tables")
	}
	if err = db.syncSchemaObjects(ctx, tx); err != nil {
		return errors.Wrap(err, "sync indexes, triggers and views")
	}
	var violations []foreignKeyViolation
	if err = tx.SelectContext(ctx, &violations, "PRAGMA foreign_key_check"); err != nil {
		return errors.Wrap(err, "foreign key check")
	}
	if len(violations) > 0 {
		return errors.New("foreign key violations after migration", slog.Any("violations", violations))
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

type foreignKeyViolation struct {
	Table  string         `db:"table"`
	RowID  sql.NullInt64  `db:"rowid"`
	Parent string         `db:"parent"`
	FKID   sql.NullString `db:"fkid"`
}

type schemaObject struct {
	Type string `db:"type"`
	Name string `db:"name"`
	SQL  string `db:"sql"`
}

const (
	queryDroppedTables = `SELECT current.name
FROM main.sqlite_schema AS current
LEFT JOIN target.sqlite_schema AS wanted ON wanted.name = current.name AND wanted.type = current.type
WHERE current.type = 'table' AND wanted.name IS NULL AND current.name NOT LIKE 'sqlite_%'`

	queryAddedTables = `SELECT wanted.sql
FROM target.sqlite_schema AS wanted
LEFT JOIN main.sqlite_schema AS current ON current.name = wanted.name AND current.type = wanted.type
WHERE wanted.type = 'table' AND current.name IS NULL AND wanted.name NOT LIKE 'sqlite_%'`

	queryChangedTables = `SELECT current.type, current.name, wanted.sql
FROM main.sqlite_schema AS current
JOIN target.sqlite_schema AS wanted ON wanted.name = current.name AND wanted.type = current.type
WHERE current.type = 'table' AND current.name NOT LIKE 'sqlite_%' AND current.sql <> wanted.sql`

	// Column names are quoted because they may be SQLite keywords.
	queryCommonColumns = `SELECT '"' || wanted.name || '"'
FROM pragma_table_info(?) AS current
JOIN pragma_table_info(?, 'target') AS wanted ON wanted.name = current.name`

	// Automatic indexes have no SQL and are managed by SQLite itself.
	queryStaleObjects = `SELECT current.type, current.name, current.sql
FROM main.sqlite_schema AS current
LEFT JOIN target.sqlite_schema AS wanted ON wanted.name = current.name AND wanted.type = current.type
WHERE current.type IN ('index', 'trigger', 'view') AND current.sql IS NOT NULL
  AND (wanted.sql IS NULL OR wanted.sql <> current.sql)`

	queryMissingObjects = `SELECT wanted.type, wanted.name, wanted.sql
FROM target.sqlite_schema AS wanted
LEFT JOIN main.sqlite_schema AS current ON current.name = wanted.name AND current.type = wanted.type
WHERE wanted.type IN ('index', 'trigger', 'view') AND wanted.sql IS NOT NULL
  AND (current.sql IS NULL OR current.sql <> wanted.sql)`
)

func (db *Database) syncTables(ctx context.Context, tx *sqlx.Tx) error {
	var dropped []string
	if err := tx.SelectContext(ctx, &dropped, queryDroppedTables); err != nil {
		return errors.Wrap(err, "query dropped tables")
	}
	for _, table := range dropped {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table)); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", table))
		}
	}

	var added []string
	if err := tx.SelectContext(ctx, &added, queryAddedTables); err != nil {
		return errors.Wrap(err, "query added tables")
	}
	for _, stmt := range added {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", stmt))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "create table", slog.String("query", stmt))
		}
	}

	var changed []schemaObject
	if err := tx.SelectContext(ctx, &changed, queryChangedTables); err != nil {
		return errors.Wrap(err, "query changed tables")
	}
	for _, table := range changed {
		if err := db.rebuildTable(ctx, tx, table); err != nil {
			return errors.Wrap(err, "rebuild table", slog.String("table", table.Name))
		}
	}
	return nil
}

// rebuildTable creates the new version of table under a temporary name, copies the shared columns over and swaps
// the tables.
func (db *Database) rebuildTable(ctx context.Context, tx *sqlx.Tx, table schemaObject) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "rebuilding table",
		slog.String("table", table.Name), slog.String("new_sql", table.SQL))

	tempName := table.Name + "_migration_temp"
	createTemp := strings.Replace(table.SQL, table.Name, tempName, 1)
	if _, err := tx.ExecContext(ctx, createTemp); err != nil {
		return errors.Wrap(err, "create temporary table", slog.String("query", createTemp))
	}

	var columns []string
	if err := tx.SelectContext(ctx, &columns, queryCommonColumns, table.Name, table.Name); err != nil {
		return errors.Wrap(err, "query common columns")
	}
	if len(columns) > 0 {
		list := strings.Join(columns, ", ")
		copyData := fmt.Sprintf("INSERT INTO %q (%s) SELECT %s FROM %q", tempName, list, list, table.Name)
		if _, err := tx.ExecContext(ctx, copyData); err != nil {
			return errors.Wrap(err, "copy data", slog.String("query", copyData))
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table.Name)); err != nil {
		return errors.Wrap(err, "drop old table")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %q RENAME TO %q", tempName, table.Name)); err != nil {
		return errors.Wrap(err, "rename temporary table")
	}
	return nil
}

func (db *Database) syncSchemaObjects(ctx context.Context, tx *sqlx.Tx) error {
	var stale []schemaObject
	if err := tx.SelectContext(ctx, &stale, queryStaleObjects); err != nil {
		return errors.Wrap(err, "query stale objects")
	}
	for _, o := range stale {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping schema object",
			slog.String("type", o.Type), slog.String("name", o.Name))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP %s IF EXISTS %q", strings.ToUpper(o.Type), o.Name)); err != nil {
			return errors.Wrap(err, "drop schema object", slog.String("name", o.Name))
		}
	}

	var missing []schemaObject
	if err := tx.SelectContext(ctx, &missing, queryMissingObjects); err != nil {
		return errors.Wrap(err, "query missing objects")
	}
	for _, o := range missing {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating schema object",
			slog.String("type", o.Type), slog.String("name", o.Name))
		if _, err := tx.ExecContext(ctx, o.SQL); err != nil {
			return errors.Wrap(err, "create schema object", slog.String("query", o.SQL))
		}
	}
	return nil
}
