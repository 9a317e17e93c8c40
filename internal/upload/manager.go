package upload

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/google/uuid"
	"github.com/lanbox/backend/internal/models"
)

// DefaultRetention is how long a finished upload stays queryable.
const DefaultRetention = 5 * time.Minute

const bytesPerMB = 1024 * 1024

// Job tracks one in-flight upload. It is an io.Writer so the request body can
// be teed through it while streaming to disk.
type Job struct {
	ID        string
	FileName  string
	Total     int64
	StartedAt time.Time

	received atomic.Int64
}

// Write counts bytes; it never fails.
func (j *Job) Write(p []byte) (int, error) {
	j.received.Add(int64(len(p)))
	return len(p), nil
}

// Received returns the number of body bytes seen so far.
func (j *Job) Received() int64 {
	return j.received.Load()
}

// Manager keeps progress for running uploads and, for a while, finished ones.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	finished  *ttlworker.Cache[string, *finishedUpload]
	retention time.Duration
	now       func() time.Time
}

// finishedUpload is a final snapshot with a fixed expiry. The cache slides its
// own expiry on every read, so polling alone must not keep a record alive.
type finishedUpload struct {
	snap    models.UploadProgress
	expires time.Time
}

// NewManager creates an upload progress manager. Finished uploads are kept for retention.
func NewManager(retention time.Duration) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		jobs:      make(map[string]*Job),
		finished:  ttlworker.NewCache[string, *finishedUpload](retention),
		retention: retention,
		now:       time.Now,
	}
}

// StartJob registers an upload. An empty id, or one already used by a running
// upload, gets a fresh uuid; callers report job.ID back to the client. total
// may be zero or negative when the client did not announce a length.
func (m *Manager) StartJob(id, fileName string, total int64) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.jobs[id]; id == "" || running {
		id = uuid.New().String()
	}
	job := &Job{
		ID:        id,
		FileName:  fileName,
		Total:     total,
		StartedAt: m.now(),
	}
	m.jobs[id] = job
	m.finished.Delete(id)

	return job
}

// Complete marks a job as completed with the final stored size.
func (m *Manager) Complete(job *Job, size int64) {
	m.finish(job, models.UploadStatusCompleted, size, "")
}

// Fail marks a job as failed.
func (m *Manager) Fail(job *Job, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	m.finish(job, models.UploadStatusFailed, -1, msg)
}

func (m *Manager) finish(job *Job, status models.UploadStatus, size int64, errMsg string) {
	snap := m.snapshot(job, status)
	if size >= 0 {
		snap = m.withTotals(snap, size, size)
	}
	snap.Error = errMsg

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs[job.ID] != job {
		return
	}
	delete(m.jobs, job.ID)
	m.finished.Set(job.ID, &finishedUpload{snap: snap, expires: m.now().Add(m.retention)})
}

// Get returns the latest snapshot for an upload id.
func (m *Manager) Get(id string) (models.UploadProgress, bool) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		// ttl.Cache.Get writes the item's expiry after dropping its own lock,
		// so every cache access happens under m.mu.
		rec := m.finished.Get(id)
		if rec != nil && m.now().After(rec.expires) {
			m.finished.Delete(id)
			rec = nil
		}
		m.mu.Unlock()
		if rec == nil {
			return models.UploadProgress{}, false
		}
		return rec.snap, true
	}
	m.mu.Unlock()
	return m.snapshot(job, models.UploadStatusUploading), true
}

// Active returns the number of uploads currently being received.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *Manager) snapshot(job *Job, status models.UploadStatus) models.UploadProgress {
	snap := models.UploadProgress{
		UploadID: job.ID,
		FileName: job.FileName,
		Status:   status,
		Elapsed:  round(m.now().Sub(job.StartedAt).Seconds(), 1),
	}
	return m.withTotals(snap, job.Received(), job.Total)
}

func (m *Manager) withTotals(snap models.UploadProgress, received, total int64) models.UploadProgress {
	snap.ReceivedBytes = received
	snap.TotalBytes = total
	snap.ReceivedMB = round(float64(received)/bytesPerMB, 2)
	if total > 0 {
		snap.TotalMB = round(float64(total)/bytesPerMB, 2)
		snap.Progress = int(math.Min(100, math.Round(float64(received)/float64(total)*100)))
	}
	if snap.Status == models.UploadStatusCompleted {
		snap.Progress = 100
	}
	if snap.Elapsed > 0 {
		snap.Speed = round(float64(received)/bytesPerMB/snap.Elapsed, 2)
	}
	return snap
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
