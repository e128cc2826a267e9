// internal/websocket/handler/policies.go
package handler

import (
	"context"
	"fmt"

	"policy-service/internal/domain/policy"
	wstypes "policy-service/internal/domain/websocket"
	ws "policy-service/internal/websocket"
)

// PolicyLister is the read side of the policy service.
type PolicyLister interface {
	GetPolicies(ctx context.Context) ([]policy.Policy, error)
}

// PolicyHandler answers policy queries sent over the socket, so a client that
// reconnects can resync without a separate HTTP round trip.
type PolicyHandler struct {
	policies PolicyLister
}

func NewPolicyHandler(policies PolicyLister) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// SupportedEvents returns events this handler supports
func (h *PolicyHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypePolicyList,
	}
}

// HandleMessage processes policy-related messages
func (h *PolicyHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypePolicyList:
		return h.handleList(ctx, client)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

func (h *PolicyHandler) handleList(ctx context.Context, client *ws.Client) error {
	policies, err := h.policies.GetPolicies(ctx)
	if err != nil {
		client.SendError("list_failed", "Failed to load policies", err.Error())
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypePolicyList, map[string]interface{}{
		"policies": policies,
		"count":    len(policies),
	}))
	return nil
}
