package controller

import (
	"fmt"
	"strings"
	"sync"
)

// FaceImageField is the model field the capture widget writes.
const FaceImageField = "faceImage"

// SubmissionContext identifies the checkpoint being reverified. Empty
// identifiers are allowed and displayed as unknown.
type SubmissionContext struct {
	CourseID     string
	CheckpointID string
}

// Submission is the payload handed to a Persister.
type Submission struct {
	CourseID     string
	CheckpointID string
	FaceImage    string
}

// Model holds the photo captured for one submission context.
type Model struct {
	mu        sync.RWMutex
	context   SubmissionContext
	faceImage string
}

// NewModel builds an empty model for ctx.
func NewModel(ctx SubmissionContext) *Model {
	return &Model{context: ctx}
}

// Context returns the identifiers the model was built for.
func (m *Model) Context() SubmissionContext {
	return m.context
}

// Set writes a model field. Only FaceImageField is writable.
func (m *Model) Set(field string, value string) error {
	if strings.TrimSpace(field) != FaceImageField {
		return fmt.Errorf("unknown model field %q", field)
	}
	m.mu.Lock()
	m.faceImage = value
	m.mu.Unlock()
	return nil
}

// Get reads a model field.
func (m *Model) Get(field string) (string, bool) {
	if strings.TrimSpace(field) != FaceImageField {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.faceImage, true
}

// FaceImage returns the captured payload, empty when nothing was captured.
func (m *Model) FaceImage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.faceImage
}

// Submission snapshots the model for persistence.
func (m *Model) Submission() Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Submission{
		CourseID:     m.context.CourseID,
		CheckpointID: m.context.CheckpointID,
		FaceImage:    m.faceImage,
	}
}
