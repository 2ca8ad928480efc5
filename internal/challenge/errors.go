package challenge

import (
	"errors"

	"github.com/gokatarajesh/challenge-engine/internal/grading"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("challenge not found")
	ErrInactiveWindow      = errors.New("challenge is not accepting submissions")
	ErrDuplicateSubmission = errors.New("submitter already answered this challenge")
	// ErrEvaluatorUnavailable never leaves the grading pipeline.
	ErrEvaluatorUnavailable = grading.ErrEvaluatorUnavailable
	// ErrSubmissionsShrunk is returned by stores when a mutation drops submissions.
	ErrSubmissionsShrunk = errors.New("submissions are append-only")
)
