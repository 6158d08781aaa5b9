package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/framectl/internal/errors"
	"codeberg.org/mutker/framectl/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS snapshots (
	       timestamp           INTEGER PRIMARY KEY,
	       current_fps         REAL NOT NULL,
	       average_fps         REAL NOT NULL,
	       quality_level       REAL NOT NULL,
	       particle_multiplier REAL NOT NULL,
	       shader_level        REAL NOT NULL,
	       preset_name         TEXT NOT NULL,
	       preset_index        INTEGER NOT NULL,
	       gpu_bound           INTEGER NOT NULL,
	       cpu_bound           INTEGER NOT NULL,
	       memory_bound        INTEGER NOT NULL,
	       adaptation_enabled  INTEGER NOT NULL CHECK (adaptation_enabled IN (0, 1)),
	       recovering          INTEGER NOT NULL CHECK (recovering IN (0, 1)),
	       recovery_count      INTEGER NOT NULL
	   );`

	insertSnapshotSQL = `
    INSERT OR REPLACE INTO snapshots (
        timestamp,
        current_fps, average_fps,
        quality_level, particle_multiplier, shader_level,
        preset_name, preset_index,
        gpu_bound, cpu_bound, memory_bound,
        adaptation_enabled, recovering, recovery_count
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	logger.Info().
		Int("version", SchemaVersion).
		Msg("Telemetry schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := tableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}

// ValidateAndUpdateSchema checks the schema version and recreates it when it
// does not match the current one.
func ValidateAndUpdateSchema(db *sql.DB) error {
	errFactory := errors.New()

	version, err := GetSchemaVersion(db)
	if err != nil {
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	if version == SchemaVersion {
		logger.Debug().Int("version", version).Msg("Telemetry schema is current")
		return nil
	}

	if version != 0 {
		logger.Warn().
			Int("found", version).
			Int("want", SchemaVersion).
			Msg("Telemetry schema version mismatch, recreating")
		if err := dropTables(db); err != nil {
			return err
		}
	}

	return InitSchema(db)
}

func dropTables(db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to rollback drop tables")
			}
		}
	}()

	for _, table := range []string{"snapshots", "schema_versions"} {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return errFactory.WithData(ErrSchemaMigrationFailed, struct {
				Table string
				Error string
			}{
				Table: table,
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}
	committed = true

	return nil
}

func tableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()

	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	return exists, nil
}
