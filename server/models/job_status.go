package models

import "gorm.io/gorm"

const (
	ENQUEUED_JOB    = "enqueued"
	IN_PROGRESS_JOB = "in-progress"
	SUCCESSFUL_JOB  = "successful"
	DEAD_JOB        = "dead"
	SCHEDULED_JOB   = "scheduled"
)

var jobStatusNames = []string{ENQUEUED_JOB, IN_PROGRESS_JOB, SUCCESSFUL_JOB, DEAD_JOB, SCHEDULED_JOB}

type JobStatus struct {
	ID   uint   `json:"id" gorm:"primarykey"`
	Name string `json:"name" gorm:"not null;unique"`
	Jobs []Job  `json:"jobs,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
}

type JobsStats struct {
	EnqueuedJobCount   int64 `json:"enqueued_job_count"`
	InProgressJobCount int64 `json:"in_progress_job_count"`
	SuccessfulJobCount int64 `json:"successful_job_count"`
	DeadJobCount       int64 `json:"dead_job_count"`
}

func FindJobStatus(db *gorm.DB, name string) (*JobStatus, error) {
	jobStatus := JobStatus{}
	err := db.Select("ID", "Name").First(&jobStatus, "name = ?", name).Error
	if err != nil {
		return nil, err
	}

	return &jobStatus, nil
}

func CurrentJobsStats(db *gorm.DB) (*JobsStats, error) {
	const JOIN_QUERY = "INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?"
	stats := JobsStats{}

	counts := []struct {
		status string
		dest   *int64
	}{
		{ENQUEUED_JOB, &stats.EnqueuedJobCount},
		{IN_PROGRESS_JOB, &stats.InProgressJobCount},
		{SUCCESSFUL_JOB, &stats.SuccessfulJobCount},
		{DEAD_JOB, &stats.DeadJobCount},
	}

	for _, c := range counts {
		err := db.Joins(JOIN_QUERY, c.status).Model(&Job{}).Count(c.dest).Error
		if err != nil {
			return nil, err
		}
	}

	return &stats, nil
}

func seedJobStatuses(db *gorm.DB) error {
	for _, name := range jobStatusNames {
		err := db.FirstOrCreate(&JobStatus{}, JobStatus{Name: name}).Error
		if err != nil {
			return err
		}
	}

	return nil
}
