package model

type predicateEvaluator interface {
	// Checks whether the teacher is listed among the subject's assigned teachers
	Eligible(subject, teacher int) bool

	// Checks whether the teacher is available to teach at the given day and slot
	TeacherAvailable(teacher int, day Day, slot int) bool

	// Checks whether the division must be taught the subject
	Teaches(division, subject int) bool

	// Checks whether the division's size is smaller than or equal to the room's capacity (i.e. the division fits in the room)
	Fits(division, room int) bool

	// Returns how many lessons of the subject the division must receive per week
	Frequency(division, subject int) int
}
