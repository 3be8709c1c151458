package sheets

import (
	"context"
	"sync"
)

// BulkRow mirrors one Bulk_Calls row: phone, batch, status, call id.
type BulkRow struct {
	Phone   string
	BatchID string
	Status  string
	CallSID string
}

// MemoryTracker keeps sheet rows in memory. Unknown (phone, batch) pairs are
// appended on first update so local runs need no pre-filled sheet.
type MemoryTracker struct {
	mu   sync.Mutex
	bulk []BulkRow
	logs []CallLogRow
}

func NewMemoryTracker(rows ...BulkRow) *MemoryTracker {
	return &MemoryTracker{bulk: append([]BulkRow(nil), rows...)}
}

func (m *MemoryTracker) Name() string { return "memory_sheets" }

func (m *MemoryTracker) MarkBulk(ctx context.Context, phone, batchID, status, callSID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clean := NormalizePhone(phone)
	for i := range m.bulk {
		if NormalizePhone(m.bulk[i].Phone) == clean && m.bulk[i].BatchID == batchID {
			m.bulk[i].Status = status
			if callSID != "" {
				m.bulk[i].CallSID = callSID
			}
			return nil
		}
	}
	m.bulk = append(m.bulk, BulkRow{Phone: phone, BatchID: batchID, Status: status, CallSID: callSID})
	return nil
}

func (m *MemoryTracker) MarkBulkByCallSID(ctx context.Context, callSID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bulk {
		if callSID != "" && m.bulk[i].CallSID == callSID {
			m.bulk[i].Status = status
			return nil
		}
	}
	return ErrRowNotFound
}

func (m *MemoryTracker) AppendCallLog(ctx context.Context, row CallLogRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, row)
	return nil
}

// BulkRows returns a copy of the Bulk_Calls rows.
func (m *MemoryTracker) BulkRows() []BulkRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BulkRow(nil), m.bulk...)
}

// CallLogs returns a copy of the appended Call_Logs rows.
func (m *MemoryTracker) CallLogs() []CallLogRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CallLogRow(nil), m.logs...)
}
