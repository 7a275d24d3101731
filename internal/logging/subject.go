package logging

import "strings"

// shortTaskIDLen trims UUIDs in console headers.
const shortTaskIDLen = 8

// FormatSubject builds the task/stage subject string used in console output.
func FormatSubject(taskID, stage string) string {
	taskID = strings.TrimSpace(taskID)
	stage = strings.TrimSpace(stage)
	if len(taskID) > shortTaskIDLen {
		taskID = taskID[:shortTaskIDLen]
	}
	switch {
	case taskID != "" && stage != "":
		return "Task " + taskID + " (" + stage + ")"
	case taskID != "":
		return "Task " + taskID
	default:
		return stage
	}
}
