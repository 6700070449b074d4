package model

type predicateEvaluatorStandard struct {
	modelInput ModelInput
	eligible   [][]bool // Eligibility matrix per subject
	teaches    [][]bool // Curriculum matrix per division
}

func newPredicateEvaluator(modelInput ModelInput) predicateEvaluator {
	evaluator := predicateEvaluatorStandard{
		modelInput: modelInput,
	}

	evaluator.eligible = make([][]bool, len(modelInput.Subjects))
	for subject, teachers := range modelInput.Eligible {
		evaluator.eligible[subject] = make([]bool, len(modelInput.Teachers))
		for _, teacher := range teachers {
			evaluator.eligible[subject][teacher] = true
		}
	}

	evaluator.teaches = make([][]bool, len(modelInput.Divisions))
	for division, subjects := range modelInput.Curriculum {
		evaluator.teaches[division] = make([]bool, len(modelInput.Subjects))
		for _, subject := range subjects {
			evaluator.teaches[division][subject] = true
		}
	}

	return &evaluator
}

func (evaluator *predicateEvaluatorStandard) Eligible(subject, teacher int) bool {
	return evaluator.eligible[subject][teacher]
}

func (evaluator *predicateEvaluatorStandard) TeacherAvailable(teacher int, day Day, slot int) bool {
	return !evaluator.modelInput.Unavailable[teacher][evaluator.modelInput.Grid.Cell(day, slot)]
}

func (evaluator *predicateEvaluatorStandard) Teaches(division, subject int) bool {
	return evaluator.teaches[division][subject]
}

func (evaluator *predicateEvaluatorStandard) Fits(division, room int) bool {
	return evaluator.modelInput.Rooms[room].Capacity >= evaluator.modelInput.DivisionSizes[division]
}

func (evaluator *predicateEvaluatorStandard) Frequency(division, subject int) int {
	return evaluator.modelInput.Frequencies[division][subject]
}
