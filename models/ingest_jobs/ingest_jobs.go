// Logic for interacting with the "ingest_jobs" table.
package ingest_jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shyp/go-dberror"
	"github.com/Shyp/go-types"
	uuid "github.com/kevinburke/go.uuid"
	"github.com/avinash9807/Url-uploader-with-online-player/models"
	"github.com/avinash9807/Url-uploader-with-online-player/models/db"
)

const Prefix = "vid_"

// ErrNotFound indicates that the ingest job was not found.
var ErrNotFound = errors.New("Ingest job not found")

var enqueueStmt *sql.Stmt
var getStmt *sql.Stmt
var deleteStmt *sql.Stmt
var claimStmt *sql.Stmt
var listByStatusStmt *sql.Stmt
var listRecentStmt *sql.Stmt
var setAssetStmt *sql.Stmt
var setPlaybackStmt *sql.Stmt
var markReadyStmt *sql.Stmt
var markErroredStmt *sql.Stmt
var recordErrorStmt *sql.Stmt
var listResumableStmt *sql.Stmt
var countsByStatusStmt *sql.Stmt
var oldProcessingStmt *sql.Stmt

// StuckJobLimit is the maximum number of stuck jobs to fetch in one database
// query.
var StuckJobLimit = 100

// Setup prepares all database queries in this package.
func Setup() (err error) {
	if !db.Connected() {
		return errors.New("No DB connection was established, can't query")
	}

	if enqueueStmt != nil {
		return
	}

	query := fmt.Sprintf(`-- ingest_jobs.Enqueue
INSERT INTO ingest_jobs (%s)
VALUES ($1, $2, $3, '%s')
RETURNING %s`, insertFields(), models.StatusQueued, fields())
	enqueueStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	query = fmt.Sprintf(`-- ingest_jobs.Get
SELECT %s
FROM ingest_jobs
WHERE id = $1`, fields())
	getStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	query = `-- ingest_jobs.Delete
	DELETE FROM ingest_jobs WHERE id = $1`
	deleteStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	// The WHERE status clause makes the claim atomic; of two dispatchers
	// racing for the same queued job, exactly one gets a row back.
	query = fmt.Sprintf(`-- ingest_jobs.Claim
UPDATE ingest_jobs
SET status='%s',
	updated_at=now()
WHERE id = $1
	AND status='%s'
RETURNING %s`, models.StatusProcessing, models.StatusQueued, fields())
	claimStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	query = fmt.Sprintf(`-- ingest_jobs.ListByStatus
SELECT %s
FROM ingest_jobs
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2`, fields())
	listByStatusStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	query = fmt.Sprintf(`-- ingest_jobs.ListRecent
SELECT %s
FROM ingest_jobs
ORDER BY created_at DESC
LIMIT $1`, fields())
	listRecentStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	// asset_id is written at most once; a second pass over the same job
	// matches zero rows and gets sql.ErrNoRows.
	query = fmt.Sprintf(`-- ingest_jobs.SetAsset
UPDATE ingest_jobs
SET asset_id = $2,
	provider_response = $3,
	updated_at = now()
WHERE id = $1
	AND asset_id IS NULL
	AND status = '%s'
RETURNING %s`, models.StatusProcessing, fields())
	setAssetStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	// First playback ID wins, never overwritten.
	query = fmt.Sprintf(`-- ingest_jobs.SetPlaybackID
UPDATE ingest_jobs
SET playback_id = $2,
	updated_at = now()
WHERE id = $1
	AND playback_id IS NULL
RETURNING %s`, fields())
	setPlaybackStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	query = fmt.Sprintf(`-- ingest_jobs.MarkReady
UPDATE ingest_jobs
SET status = '%s',
	provider_response = $2,
	updated_at = now()
WHERE id = $1
	AND status = '%s'
RETURNING %s`, models.StatusReady, models.StatusProcessing, fields())
	markReadyStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	query = fmt.Sprintf(`-- ingest_jobs.MarkErrored
UPDATE ingest_jobs
SET status = '%s',
	last_error = $2,
	updated_at = now()
WHERE id = $1
	AND status = '%s'
RETURNING %s`, models.StatusErrored, models.StatusProcessing, fields())
	markErroredStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	// Annotation only; the status stays where it is so a later pass can
	// pick the job back up.
	query = fmt.Sprintf(`-- ingest_jobs.RecordError
UPDATE ingest_jobs
SET last_error = $2,
	updated_at = now()
WHERE id = $1
	AND status = '%s'
RETURNING %s`, models.StatusProcessing, fields())
	recordErrorStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	// Processing jobs whose pass gave up inside its polling budget, or died
	// outright. The updated_at guard keeps a cycle from grabbing a job some
	// other pass is actively polling.
	query = fmt.Sprintf(`-- ingest_jobs.ListResumable
SELECT %s
FROM ingest_jobs
WHERE status = '%s'
	AND updated_at < $1
ORDER BY created_at ASC
LIMIT $2`, fields(), models.StatusProcessing)
	listResumableStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	query = `-- ingest_jobs.GetCountsByStatus
SELECT status, count(*) FROM ingest_jobs GROUP BY status`
	countsByStatusStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}

	query = fmt.Sprintf(`-- ingest_jobs.GetOldProcessingJobs
SELECT %s FROM ingest_jobs WHERE status='%s' AND updated_at < $1 LIMIT %d`,
		fields(), models.StatusProcessing, StuckJobLimit)
	oldProcessingStmt, err = db.Conn.Prepare(query)
	if err != nil {
		return err
	}
	return
}

// Enqueue creates a new ingest job with the given ID, source URL and title,
// in the "queued" state. A dberror.Error will be returned if Postgres
// returns a constraint failure - job exists, empty source URL, &c.
func Enqueue(id types.PrefixUUID, sourceURL string, title types.NullString) (*models.IngestJob, error) {
	job := new(models.IngestJob)
	var bt []byte
	err := enqueueStmt.QueryRow(id, sourceURL, title).Scan(args(job, &bt)...)
	if err != nil {
		return nil, dberror.GetError(err)
	}
	job.ProviderResponse = json.RawMessage(bt)
	return job, nil
}

// Get the ingest job with the given id. Returns the job, or an error. If no
// record could be found, the error will be `ingest_jobs.ErrNotFound`.
func Get(id types.PrefixUUID) (*models.IngestJob, error) {
	if id.UUID == uuid.Nil {
		return nil, errors.New("Invalid id")
	}
	job := new(models.IngestJob)
	var bt []byte
	err := getStmt.QueryRow(id).Scan(args(job, &bt)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, dberror.GetError(err)
	}
	job.ProviderResponse = json.RawMessage(bt)
	return job, nil
}

// GetRetry attempts to retrieve the job attempts times before giving up.
func GetRetry(id types.PrefixUUID, attempts uint8) (job *models.IngestJob, err error) {
	for i := uint8(0); i < attempts; i++ {
		job, err = Get(id)
		if err == nil || err == ErrNotFound {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	return
}

// Delete deletes the given ingest job. Returns nil if the job was deleted
// successfully. If no job exists to be deleted, ErrNotFound is returned.
func Delete(id types.PrefixUUID) error {
	if id.UUID == uuid.Nil {
		return errors.New("Invalid id")
	}
	res, err := deleteStmt.Exec(id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	} else if rows == 1 {
		return nil
	} else {
		// This should not be possible because of database constraints
		return fmt.Errorf("Multiple rows (%d) deleted for job %s, please investigate", rows, id)
	}
}

// Claim moves a queued job to the processing state. If the job does not
// exist, is already terminal, or another dispatcher claimed it first,
// sql.ErrNoRows is returned.
func Claim(id types.PrefixUUID) (*models.IngestJob, error) {
	job := new(models.IngestJob)
	var bt []byte
	err := claimStmt.QueryRow(id).Scan(args(job, &bt)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, dberror.GetError(err)
	}
	job.ProviderResponse = json.RawMessage(bt)
	return job, nil
}

// ListByStatus returns at most limit jobs with the given status, oldest
// first, so dispatch is fair to the jobs that have waited longest.
func ListByStatus(status models.JobStatus, limit int) ([]*models.IngestJob, error) {
	return list(listByStatusStmt, status, limit)
}

// ListResumable returns at most limit processing jobs, oldest first, that
// have not been touched since olderThan. These are jobs whose last pass
// exhausted its polling budget (or died) and that should be polled again.
func ListResumable(olderThan time.Time, limit int) ([]*models.IngestJob, error) {
	rows, err := listResumableStmt.Query(olderThan, limit)
	var jobs []*models.IngestJob
	if err != nil {
		return jobs, dberror.GetError(err)
	}
	defer rows.Close()
	for rows.Next() {
		job := new(models.IngestJob)
		var bt []byte
		if err := rows.Scan(args(job, &bt)...); err != nil {
			return jobs, err
		}
		job.ProviderResponse = json.RawMessage(bt)
		jobs = append(jobs, job)
	}
	err = rows.Err()
	return jobs, err
}

// ListRecent returns at most limit jobs regardless of status, newest first.
func ListRecent(limit int) ([]*models.IngestJob, error) {
	return list(listRecentStmt, nil, limit)
}

func list(stmt *sql.Stmt, status interface{}, limit int) ([]*models.IngestJob, error) {
	var rows *sql.Rows
	var err error
	if status == nil {
		rows, err = stmt.Query(limit)
	} else {
		rows, err = stmt.Query(status, limit)
	}
	var jobs []*models.IngestJob
	if err != nil {
		return jobs, dberror.GetError(err)
	}
	defer rows.Close()
	for rows.Next() {
		job := new(models.IngestJob)
		var bt []byte
		if err := rows.Scan(args(job, &bt)...); err != nil {
			return jobs, err
		}
		job.ProviderResponse = json.RawMessage(bt)
		jobs = append(jobs, job)
	}
	err = rows.Err()
	return jobs, err
}

// SetAsset records the provider's asset id, at most once per job. If the
// asset id has already been set, or the job is not in the processing state,
// sql.ErrNoRows is returned and the stored value is untouched.
func SetAsset(id types.PrefixUUID, assetID string, raw json.RawMessage) (*models.IngestJob, error) {
	return update(setAssetStmt, id, assetID, rawOrNull(raw))
}

// SetPlaybackID records the public playback id for the job's asset. The
// first value wins; writes to a job that already has one return
// sql.ErrNoRows and leave the stored value alone.
func SetPlaybackID(id types.PrefixUUID, playbackID string) (*models.IngestJob, error) {
	return update(setPlaybackStmt, id, playbackID)
}

// MarkReady moves a processing job to the terminal ready state.
func MarkReady(id types.PrefixUUID, raw json.RawMessage) (*models.IngestJob, error) {
	return update(markReadyStmt, id, rawOrNull(raw))
}

// MarkErrored moves a processing job to the terminal errored state,
// recording msg as the diagnostic.
func MarkErrored(id types.PrefixUUID, msg string) (*models.IngestJob, error) {
	return update(markErroredStmt, id, msg)
}

// RecordError annotates a processing job with msg without changing its
// status. Used for poll-budget timeouts, where the job should stay eligible
// for a future pass.
func RecordError(id types.PrefixUUID, msg string) (*models.IngestJob, error) {
	return update(recordErrorStmt, id, msg)
}

func update(stmt *sql.Stmt, id types.PrefixUUID, params ...interface{}) (*models.IngestJob, error) {
	job := new(models.IngestJob)
	var bt []byte
	qargs := append([]interface{}{id}, params...)
	err := stmt.QueryRow(qargs...).Scan(args(job, &bt)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, dberror.GetError(err)
	}
	job.ProviderResponse = json.RawMessage(bt)
	return job, nil
}

// GetOldProcessingJobs finds processing jobs with an updated_at timestamp
// older than olderThan. A maximum of StuckJobLimit jobs will be returned.
func GetOldProcessingJobs(olderThan time.Time) ([]*models.IngestJob, error) {
	rows, err := oldProcessingStmt.Query(olderThan)
	var jobs []*models.IngestJob
	if err != nil {
		return jobs, err
	}
	defer rows.Close()
	for rows.Next() {
		job := new(models.IngestJob)
		var bt []byte
		err = rows.Scan(args(job, &bt)...)
		if err != nil {
			return jobs, err
		}
		job.ProviderResponse = json.RawMessage(bt)
		jobs = append(jobs, job)
	}
	err = rows.Err()
	return jobs, err
}

// GetCountsByStatus returns a map from status to the number of jobs
// currently in that status. For example:
//
// "queued": 5,
// "processing": 2,
func GetCountsByStatus() (map[models.JobStatus]int64, error) {
	rows, err := countsByStatusStmt.Query()
	m := make(map[models.JobStatus]int64)
	if err != nil {
		return m, err
	}
	defer rows.Close()
	for rows.Next() {
		var status models.JobStatus
		var count int64
		err = rows.Scan(&status, &count)
		if err != nil {
			return m, err
		}
		m[status] = count
	}
	err = rows.Err()
	return m, err
}

func rawOrNull(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func insertFields() string {
	return `id,
	source_url,
	title,
	status`
}

func fields() string {
	return fmt.Sprintf(`'%s' || id,
	source_url,
	title,
	status,
	asset_id,
	playback_id,
	last_error,
	provider_response,
	created_at,
	updated_at`, Prefix)
}

func args(job *models.IngestJob, byteptr *[]byte) []interface{} {
	return []interface{}{
		&job.ID,
		&job.SourceURL,
		&job.Title,
		&job.Status,
		&job.AssetID,
		&job.PlaybackID,
		&job.LastError,
		// can't scan into ProviderResponse because of https://github.com/golang/go/issues/13905
		byteptr,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
}
