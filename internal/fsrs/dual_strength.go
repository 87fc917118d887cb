package fsrs

import "rook/internal/types"

var storageGradeFactor = map[types.Grade]float64{
	types.GradeAgain: 0.1,
	types.GradeHard:  0.3,
	types.GradeGood:  0.5,
	types.GradeEasy:  0.8,
}

var retrievalBaseLevel = map[types.Grade]float64{
	types.GradeAgain: 0.3,
	types.GradeHard:  0.6,
	types.GradeGood:  0.9,
	types.GradeEasy:  1.0,
}

// UpdateStorage applies one review's storage-strength growth (Bjork's
// dual-strength model): grade_factor / (1 + 0.1*reps), diminishing with
// repetition count. reps is the count *before* this review.
func UpdateStorage(dual types.DualStrength, grade types.Grade, reps uint32) types.DualStrength {
	diminishing := 1.0 / (1.0 + 0.1*float64(reps))
	dual.StorageStrength += storageGradeFactor[grade] * diminishing
	return dual
}

// UpdateRetrieval resets retrieval strength toward the grade's base level,
// blended 80/20 with the retrievability observed at review time.
func UpdateRetrieval(dual types.DualStrength, retrievability float64, grade types.Grade) types.DualStrength {
	dual.RetrievalStrength = retrievalBaseLevel[grade]*0.8 + retrievability*0.2
	return dual
}
