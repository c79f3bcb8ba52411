package jobstore

import "time"

// State represents the lifecycle of a job.
type State string

const (
	StateTodo       State = "T"
	StateInProgress State = "I"
	StateDone       State = "D"
)

// Job types handled by the queue. CC jobs are processed by this program;
// STACK jobs are enqueued as follow-up work for the reference-stack step.
const (
	TypeCC    = "CC"
	TypeSTACK = "STACK"
)

// Job is a unit of work: one (day, station pair) combination for one job
// type. A job is claimed (Todo to InProgress) atomically by exactly one
// worker and marked Done by that worker when it has nothing left to do for
// it, whether or not any data was available.
type Job struct {
	ID        int64
	Day       string // YYYY-MM-DD
	Pair      string // NET.STA1_NET.STA2
	Type      string
	State     State
	ClaimedBy string
	UpdatedAt time.Time
}

// Stations returns the two net.sta identifiers of the job's pair.
func (j Job) Stations() (string, string) {
	for i := 0; i < len(j.Pair); i++ {
		if j.Pair[i] == '_' {
			return j.Pair[:i], j.Pair[i+1:]
		}
	}
	return j.Pair, ""
}
