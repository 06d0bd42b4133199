package core

import "time"

// Grade is the academic level used as the primary content filter axis.
type Grade string

const (
	GradeClass6  Grade = "Class 6"
	GradeClass7  Grade = "Class 7"
	GradeClass8  Grade = "Class 8"
	GradeClass9  Grade = "Class 9"
	GradeClass10 Grade = "Class 10"
	GradeSSC     Grade = "SSC"
	GradeHSC     Grade = "HSC"
	GradeGeneral Grade = "General"
)

var AllGrades = []Grade{
	GradeClass6, GradeClass7, GradeClass8, GradeClass9, GradeClass10,
	GradeSSC, GradeHSC, GradeGeneral,
}

func IsValidGrade(g Grade) bool {
	for _, grade := range AllGrades {
		if g == grade {
			return true
		}
	}
	return false
}

// ContentType tags how a piece of rich content should be rendered.
type ContentType string

const (
	ContentText ContentType = "text"
	ContentHTML ContentType = "html"
	ContentMath ContentType = "math"
)

var AllContentTypes = []ContentType{ContentText, ContentHTML, ContentMath}

func IsValidContentType(ct ContentType) bool {
	for _, t := range AllContentTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// NowMillis returns the current time as a millisecond Unix timestamp,
// the timestamp representation used throughout the store.
func NowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// MillisToTime converts a store timestamp back to a time.Time.
func MillisToTime(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond))
}
