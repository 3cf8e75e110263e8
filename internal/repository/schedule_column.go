package repository

import "github.com/brightflock/sendout-backend/internal/schedule"

// scheduleColumn scans a nullable JSON schedule column.
type scheduleColumn struct {
	schedule *schedule.Schedule
}

func (c *scheduleColumn) Scan(src any) error {
	if src == nil {
		return nil
	}
	sch := &schedule.Schedule{}
	if err := sch.Scan(src); err != nil {
		return err
	}
	c.schedule = sch
	return nil
}
