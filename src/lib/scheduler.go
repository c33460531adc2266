package lib

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

func NewScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("Error initializing Scheduler: %s\n", err.Error())
		return nil, err
	}
	return sched, nil
}

// CreateDurationJob runs task every duration. A run that is still going when the
// next one is due pushes that run back instead of overlapping it.
func CreateDurationJob(sched gocron.Scheduler, name string, duration time.Duration, task any, args ...any) (string, error) {
	j, err := sched.NewJob(
		gocron.DurationJob(duration),
		gocron.NewTask(task, args...),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Error creating job %s: %s\n", name, err.Error())
		return "", err
	}
	id := j.ID().String()
	log.Printf("Job: %s %s every %s\n", id, j.Name(), duration)
	return id, nil
}

func CreateOneTimeJob(sched gocron.Scheduler, name string, at time.Time, task any, args ...any) (string, error) {
	j, err := sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(task, args...),
		gocron.WithName(name),
	)
	if err != nil {
		return "", err
	}
	return j.ID().String(), nil
}
