package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

// Job is a unit of background work, claimed and processed by the worker pool.
// Delivery of nudge sends is the main producer.
type Job struct {
	ID           uint       `json:"id" gorm:"primarykey"`
	Fails        int        `json:"fails"`
	Name         string     `json:"name"`
	Handler      string     `json:"handler"`
	Args         string     `json:"args"`
	LastError    string     `json:"last_error"`
	Claimed      bool       `json:"claimed" gorm:"default:false"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	JobStatusID  uint       `json:"job_status_id"`
	JobStatus    *JobStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MarkAsClaimed atomically claims the job for a worker. The claimed=false
// predicate is what stops two workers from picking up the same job.
func (job *Job) MarkAsClaimed(db *gorm.DB) (bool, error) {
	inProgressStatus, err := FindJobStatus(db, IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})

	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (job *Job) Update(db *gorm.DB, data map[string]interface{}) error {
	return db.Model(job).Updates(data).Error
}

// CreateUniqueJobByName enqueues a job unless one with the same name is
// already waiting or running.
func CreateUniqueJobByName(db *gorm.DB, name, handler, args string) error {
	statusIDs := []uint{}
	err := db.Model(&JobStatus{}).Where("name IN ?", []string{ENQUEUED_JOB, IN_PROGRESS_JOB}).
		Pluck("id", &statusIDs).Error
	if err != nil {
		return err
	}

	var count int64
	err = db.Model(&Job{}).Where("name = ? AND job_status_id IN ?", name, statusIDs).Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return ErrDuplicateJob
	}

	enqueuedStatus, err := FindJobStatus(db, ENQUEUED_JOB)
	if err != nil {
		return err
	}

	return db.Create(&Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		JobStatusID: enqueuedStatus.ID,
	}).Error
}

// CreateScheduledJob creates a job to be moved into the queue at 'runAt'.
func CreateScheduledJob(db *gorm.DB, name, handler, args string, runAt time.Time) error {
	scheduledStatus, err := FindJobStatus(db, SCHEDULED_JOB)
	if err != nil {
		return err
	}

	return db.Create(&Job{
		Name:         name,
		Handler:      handler,
		Args:         args,
		ScheduledFor: &runAt,
		JobStatusID:  scheduledStatus.ID,
	}).Error
}

// FirstScheduledJobToBeQueued returns the oldest scheduled job that is due.
func FirstScheduledJobToBeQueued(db *gorm.DB) (*Job, error) {
	job := Job{}
	err := db.Preload("JobStatus").
		Joins("INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?", SCHEDULED_JOB).
		Where("scheduled_for <= ?", time.Now()).
		Order("jobs.id").First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// LastJob returns the most recent job in the given queue.
func LastJob(db *gorm.DB, status string, claimed bool) (*Job, error) {
	job := Job{}
	err := db.Joins(
		"INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ? AND claimed = ?",
		status, claimed).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// StuckJob returns an in-progress job that has not been touched for
// 'olderThan', so the requeuer can put it back in the queue.
func StuckJob(db *gorm.DB, olderThan time.Duration) (*Job, error) {
	jobStatus, err := FindJobStatus(db, IN_PROGRESS_JOB)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Where("job_status_id = ? AND updated_at <= ?", jobStatus.ID, time.Now().Add(-olderThan)).
		Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}
