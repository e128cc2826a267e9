// internal/handlers/policy/policy.go
package policy

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"policy-service/internal/domain/policy"
	"policy-service/internal/pkg/response"
	service "policy-service/internal/service/policy"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

type PolicyHandler struct {
	policyService *service.PolicyService
	logger        *zap.Logger
}

func NewPolicyHandler(policyService *service.PolicyService, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		policyService: policyService,
		logger:        logger,
	}
}

// ListPolicies returns every policy
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	policies, err := h.policyService.GetPolicies(c.Request.Context())
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}

	response.JSON(c, http.StatusOK, policies)
}

// CreatePolicy creates a new policy
func (h *PolicyHandler) CreatePolicy(c *gin.Context) {
	req, err := bindCreateRequest(c)
	if err != nil {
		response.ValidationError(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.policyService.CreatePolicy(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}

	response.Created(c, fmt.Sprintf("/api/policies/%d", result.PolicyNumber), result)
}

// GetPolicy retrieves a policy by number
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	policyNumber, ok := parsePolicyNumber(c)
	if !ok {
		return
	}

	result, err := h.policyService.GetPolicy(c.Request.Context(), policyNumber)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}

	response.JSON(c, http.StatusOK, result)
}

// CancelPolicy cancels an active policy
func (h *PolicyHandler) CancelPolicy(c *gin.Context) {
	policyNumber, ok := parsePolicyNumber(c)
	if !ok {
		return
	}

	result, err := h.policyService.CancelPolicy(c.Request.Context(), policyNumber)
	if err != nil {
		response.FromError(c, h.logger, err)
		return
	}

	response.JSON(c, http.StatusOK, result)
}

// bindCreateRequest decodes the body. An empty or null body yields a nil request,
// which the service rejects with its own message.
func bindCreateRequest(c *gin.Context) (*policy.CreatePolicyRequest, error) {
	data, err := c.GetRawData()
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var req policy.CreatePolicyRequest
	if err := binding.JSON.BindBody(trimmed, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func parsePolicyNumber(c *gin.Context) (int64, bool) {
	policyNumber, err := strconv.ParseInt(c.Param("policyNumber"), 10, 64)
	if err != nil || policyNumber <= 0 {
		response.ValidationError(c, "Invalid policy number.")
		return 0, false
	}
	return policyNumber, true
}
