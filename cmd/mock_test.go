package main

import (
	"context"
	"sync"

	"github.com/sells-group/contact-sync/internal/pipeline"
)

// fakeService records webhook calls and returns canned results.
type fakeService struct {
	mu         sync.Mutex
	processed  []string
	grades     map[string]string
	result     *pipeline.ContactResult
	gradeErr   error
	processArg struct{ id, phone string }
}

func newFakeService() *fakeService {
	return &fakeService{grades: make(map[string]string)}
}

func (f *fakeService) ProcessContact(_ context.Context, id, phone string, _ ...pipeline.ProcessOption) *pipeline.ContactResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	f.processArg.id, f.processArg.phone = id, phone
	if f.result != nil {
		return f.result
	}
	return &pipeline.ContactResult{ContactID: id, Status: pipeline.StatusSuccess, Message: "Updated contact " + id}
}

func (f *fakeService) UpdateGrade(_ context.Context, id, grade string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gradeErr != nil {
		return f.gradeErr
	}
	f.grades[id] = grade
	return nil
}

func (f *fakeService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed) + len(f.grades)
}

func failedResult(id string, err error) *pipeline.ContactResult {
	return &pipeline.ContactResult{ContactID: id, Status: pipeline.StatusFailed, Message: err.Error(), Err: err}
}

