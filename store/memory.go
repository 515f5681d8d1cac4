package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	flowengine "github.com/queryflow/flowengine"
)

// MemoryStore implements flowengine.ExecutionStore using in-memory storage (for testing)
type MemoryStore struct {
	executions map[string]*flowengine.ExecutionRecord
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory execution store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]*flowengine.ExecutionRecord),
	}
}

func (s *MemoryStore) CreateExecution(ctx context.Context, record *flowengine.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[record.ExecutionID]; exists {
		return fmt.Errorf("execution %s already exists", record.ExecutionID)
	}

	recordCopy := *record
	s.executions[record.ExecutionID] = &recordCopy

	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, executionID string) (*flowengine.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.executions[executionID]
	if !exists {
		return nil, flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s not found", executionID))
	}

	recordCopy := *record
	return &recordCopy, nil
}

func (s *MemoryStore) UpdateExecution(ctx context.Context, record *flowengine.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[record.ExecutionID]; !exists {
		return flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s not found", record.ExecutionID))
	}

	recordCopy := *record
	s.executions[record.ExecutionID] = &recordCopy

	return nil
}

func (s *MemoryStore) UpdateExecutionStatus(ctx context.Context, executionID string, status flowengine.RunStatus, execErr *flowengine.WorkflowError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.executions[executionID]
	if !exists {
		return flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s not found", executionID))
	}

	record.Status = status
	record.Error = execErr
	record.UpdatedAt = time.Now()

	if status.IsTerminal() && record.CompletedAt == nil {
		now := time.Now()
		record.CompletedAt = &now
	}

	return nil
}

func (s *MemoryStore) ListExecutions(ctx context.Context, filter flowengine.ExecutionFilter) ([]*flowengine.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*flowengine.ExecutionRecord

	for _, record := range s.executions {
		if filter.WorkflowID != "" && record.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}

		recordCopy := *record
		records = append(records, &recordCopy)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}

	return records, nil
}

func (s *MemoryStore) DeleteExecution(ctx context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[executionID]; !exists {
		return flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s not found", executionID))
	}

	delete(s.executions, executionID)

	return nil
}
