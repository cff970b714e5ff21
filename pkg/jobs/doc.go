// Package jobs schedules periodic background work. Today that is removing
// expired sessions.
package jobs
