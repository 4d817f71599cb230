package orchestrator

import (
	"fmt"
	"time"

	"termweave/pkg/models"
)

// ApprovalRequestID identifies an approval request.
type ApprovalRequestID uint64

// String returns the request id in display form.
func (id ApprovalRequestID) String() string {
	return fmt.Sprintf("req-%d", id)
}

// ApprovalState is the lifecycle state of an approval request.
type ApprovalState string

const (
	// ApprovalPending means the request awaits a decision.
	ApprovalPending ApprovalState = "pending"
	// ApprovalApproved means the request was granted.
	ApprovalApproved ApprovalState = "approved"
	// ApprovalRejected means the request was denied.
	ApprovalRejected ApprovalState = "rejected"
	// ApprovalCancelled means the requesting agent withdrew the request.
	ApprovalCancelled ApprovalState = "cancelled"
	// ApprovalExpired means the request timed out before a decision.
	ApprovalExpired ApprovalState = "expired"
)

// ApprovalRequest is a pending or decided request to approve a command
// on behalf of an agent.
type ApprovalRequest struct {
	// ID is the unique request identifier.
	ID ApprovalRequestID
	// AgentID is the agent that raised the request.
	AgentID models.AgentID
	// CommandID is the command awaiting approval.
	CommandID models.CommandID
	// Action is the action class derived from the command type.
	Action string
	// State is the current lifecycle state.
	State ApprovalState
	// RequestedAt is when the request was created.
	RequestedAt time.Time
	// DecidedAt is when a decision (or expiry) was recorded.
	DecidedAt *time.Time
	// Reason carries the rejection reason, if any.
	Reason string
}

// AuditEntry records one approval decision.
type AuditEntry struct {
	// RequestID identifies the decided request.
	RequestID ApprovalRequestID
	// AgentID is the requesting agent.
	AgentID models.AgentID
	// CommandID is the command the decision concerned.
	CommandID models.CommandID
	// Decision is the terminal state the request reached.
	Decision ApprovalState
	// At is when the decision was recorded.
	At time.Time
}

// ApprovalConfig bounds the approval manager.
type ApprovalConfig struct {
	// MaxRequests caps pending requests overall.
	MaxRequests int
	// MaxPerAgent caps pending requests per agent.
	MaxPerAgent int
	// Timeout expires pending requests older than this. Zero disables
	// expiry.
	Timeout time.Duration
	// MaxAuditEntries bounds the audit ring; older entries are evicted.
	MaxAuditEntries int
}

// DefaultApprovalConfig returns the standard approval limits.
func DefaultApprovalConfig() ApprovalConfig {
	return ApprovalConfig{
		MaxRequests:     50,
		MaxPerAgent:     5,
		Timeout:         5 * time.Minute,
		MaxAuditEntries: 256,
	}
}

// ApprovalManager tracks approval requests, enforces pending caps and
// timeouts, and keeps a bounded audit trail of decisions.
//
// Like the rest of the package it is not self-synchronizing; the owning
// orchestrator's caller provides the serialization point.
type ApprovalManager struct {
	config   ApprovalConfig
	requests map[ApprovalRequestID]*ApprovalRequest
	order    []ApprovalRequestID
	audit    []AuditEntry
	nextID   ApprovalRequestID
}

// NewApprovalManager creates a manager with the given limits.
func NewApprovalManager(config ApprovalConfig) *ApprovalManager {
	return &ApprovalManager{
		config:   config,
		requests: make(map[ApprovalRequestID]*ApprovalRequest),
		nextID:   1,
	}
}

// Request creates a pending approval request. Fails with
// ErrApprovalLimitReached when either the overall or the per-agent
// pending cap is hit.
func (m *ApprovalManager) Request(agentID models.AgentID, cmdID models.CommandID, action string) (ApprovalRequestID, error) {
	if m.PendingCount() >= m.config.MaxRequests {
		return 0, fmt.Errorf("%w: %d requests pending", ErrApprovalLimitReached, m.config.MaxRequests)
	}
	if m.PendingCountForAgent(agentID) >= m.config.MaxPerAgent {
		return 0, fmt.Errorf("%w: %s has %d requests pending", ErrApprovalLimitReached, agentID, m.config.MaxPerAgent)
	}

	id := m.nextID
	m.nextID++

	m.requests[id] = &ApprovalRequest{
		ID:          id,
		AgentID:     agentID,
		CommandID:   cmdID,
		Action:      action,
		State:       ApprovalPending,
		RequestedAt: time.Now(),
	}
	m.order = append(m.order, id)
	return id, nil
}

// Approve marks a pending request approved.
func (m *ApprovalManager) Approve(id ApprovalRequestID) (*ApprovalRequest, error) {
	return m.decide(id, ApprovalApproved, "")
}

// Reject marks a pending request rejected with the given reason.
func (m *ApprovalManager) Reject(id ApprovalRequestID, reason string) (*ApprovalRequest, error) {
	return m.decide(id, ApprovalRejected, reason)
}

// Cancel withdraws a pending request. Only the agent that raised the
// request may cancel it.
func (m *ApprovalManager) Cancel(agentID models.AgentID, id ApprovalRequestID) error {
	req, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrApprovalNotFound, id)
	}
	if req.AgentID != agentID {
		return fmt.Errorf("%w: %s did not raise %s", ErrNotRequestOwner, agentID, id)
	}
	_, err := m.decide(id, ApprovalCancelled, "")
	return err
}

// ProcessTimeouts expires pending requests older than the configured
// timeout and returns the expired requests. Expired requests count as
// rejected for the command's purposes.
func (m *ApprovalManager) ProcessTimeouts(now time.Time) []*ApprovalRequest {
	if m.config.Timeout <= 0 {
		return nil
	}

	var expired []*ApprovalRequest
	for _, id := range m.order {
		req := m.requests[id]
		if req.State != ApprovalPending {
			continue
		}
		if now.Sub(req.RequestedAt) < m.config.Timeout {
			continue
		}
		req.State = ApprovalExpired
		at := now
		req.DecidedAt = &at
		m.record(req)
		expired = append(expired, req)
	}
	return expired
}

// Get returns the request for the given id.
func (m *ApprovalManager) Get(id ApprovalRequestID) (*ApprovalRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrApprovalNotFound, id)
	}
	return req, nil
}

// Pending returns pending requests in ascending id order.
func (m *ApprovalManager) Pending() []*ApprovalRequest {
	var pending []*ApprovalRequest
	for _, id := range m.order {
		if req := m.requests[id]; req.State == ApprovalPending {
			pending = append(pending, req)
		}
	}
	return pending
}

// PendingCount returns the number of pending requests.
func (m *ApprovalManager) PendingCount() int {
	count := 0
	for _, req := range m.requests {
		if req.State == ApprovalPending {
			count++
		}
	}
	return count
}

// PendingCountForAgent returns the number of pending requests raised by
// the given agent.
func (m *ApprovalManager) PendingCountForAgent(agentID models.AgentID) int {
	count := 0
	for _, req := range m.requests {
		if req.State == ApprovalPending && req.AgentID == agentID {
			count++
		}
	}
	return count
}

// Audit returns the decision audit trail, oldest first.
func (m *ApprovalManager) Audit() []AuditEntry {
	out := make([]AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

func (m *ApprovalManager) decide(id ApprovalRequestID, decision ApprovalState, reason string) (*ApprovalRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrApprovalNotFound, id)
	}
	if req.State != ApprovalPending {
		return nil, fmt.Errorf("%w: %s already %s", ErrInvalidStateTransition, id, req.State)
	}

	req.State = decision
	req.Reason = reason
	at := time.Now()
	req.DecidedAt = &at
	m.record(req)
	return req, nil
}

// record appends to the audit ring, evicting the oldest entry at the
// configured bound.
func (m *ApprovalManager) record(req *ApprovalRequest) {
	entry := AuditEntry{
		RequestID: req.ID,
		AgentID:   req.AgentID,
		CommandID: req.CommandID,
		Decision:  req.State,
		At:        *req.DecidedAt,
	}
	m.audit = append(m.audit, entry)
	if m.config.MaxAuditEntries > 0 && len(m.audit) > m.config.MaxAuditEntries {
		m.audit = m.audit[len(m.audit)-m.config.MaxAuditEntries:]
	}
}
