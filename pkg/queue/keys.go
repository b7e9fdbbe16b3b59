package queue

import "strings"

const separator = "|"

// keys holds the store keys of one (system, queue) namespace.
type keys struct {
	jobs      string // hash   jobid -> document
	pending   string // list   jobids, pushed at the head, consumed from the tail
	ongoing   string // hash   jobid -> last activity
	cancelled string // set    cancelled jobids
	success   string // set
	failed    string // set
	step      string // hash   jobid -> step name
	activity  string // hash   worker -> last heartbeat
	current   string // hash   worker -> claimed jobid
	seq       string // string jobid sequence
}

func newKeys(system, queue string) keys {
	prefix := func(role string) string {
		return strings.Join([]string{system, queue, role}, separator)
	}
	return keys{
		jobs:      prefix("jobs"),
		pending:   prefix("pending"),
		ongoing:   prefix("ongoing"),
		cancelled: prefix("cancelled"),
		success:   prefix("success"),
		failed:    prefix("failed"),
		step:      prefix("step"),
		activity:  prefix("activity"),
		current:   prefix("current"),
		seq:       prefix("seq"),
	}
}
