// Package routepath stores canonical HTTP paths for the reverify service.
package routepath

import "net/url"

const (
	Health                = "/up"
	Dashboard             = "/dashboard"
	ReverifyPrefix        = "/reverify/"
	ReverifyPattern       = ReverifyPrefix + "{course_id}/{checkpoint}"
	ReverifySubmitPattern = ReverifyPrefix + "{course_id}/{checkpoint}/submit"
	VerifyPrefix          = "/verify_student/reverify/"
	VerifyPersistPattern  = VerifyPrefix + "{course_id}/{checkpoint}/{$}"
	PathValueCourseID     = "course_id"
	PathValueCheckpointID = "checkpoint"
)

// Reverify returns the reverification page route.
func Reverify(courseID, checkpointID string) string {
	return ReverifyPrefix + escapeSegment(courseID) + "/" + escapeSegment(checkpointID)
}

// ReverifySubmit returns the page's form submission route.
func ReverifySubmit(courseID, checkpointID string) string {
	return Reverify(courseID, checkpointID) + "/submit"
}

// VerifyPersist returns the backend photo submission route.
func VerifyPersist(courseID, checkpointID string) string {
	return VerifyPrefix + escapeSegment(courseID) + "/" + escapeSegment(checkpointID) + "/"
}

func escapeSegment(value string) string {
	return url.PathEscape(value)
}
