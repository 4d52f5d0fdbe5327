/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"database/sql"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexusworks/payments"
	model2 "github.com/nexusworks/payments/api/model"
)

// IngestWebhook receives one provider delivery. Signature failures are 401;
// everything the engine absorbs (unknown references, duplicates, stale
// redeliveries) is 200 so providers stop redelivering.
func (a Api) IngestWebhook(c *gin.Context) {
	gatewayType, passed := c.Params.Get("gateway")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gateway is required. pass gateway in the route /webhooks/:gateway"})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	if err := a.engine.IngestWebhook(c.Request.Context(), gatewayType, c.Request.Header, body); err != nil {
		if errors.Is(err, payments.ErrWebhookSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// ProcessMilestone triggers payment orchestration for a milestone.
func (a Api) ProcessMilestone(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	result, err := a.engine.ProcessMilestone(c.Request.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "milestone not found"})
			return
		}
		if payments.IsValidationError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPayment returns one payment record.
func (a Api) GetPayment(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	payment, err := a.engine.GetPayment(c.Request.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payment)
}

// GetPaymentLogs returns the audit trail of one payment.
func (a Api) GetPaymentLogs(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	entries, err := a.engine.GetPaymentLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// OpenDispute records a new dispute.
func (a Api) OpenDispute(c *gin.Context) {
	var req model2.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateOpenDispute(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dispute, err := a.engine.OpenDispute(c.Request.Context(), req.ToDispute())
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, dispute)
}

// ResolveDispute closes a dispute with an outcome.
func (a Api) ResolveDispute(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}
	var req model2.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateResolveDispute(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dispute, err := a.engine.ResolveDispute(c.Request.Context(), id, req.ResolverID, req.Outcome, req.Resolution, req.RefundAmount)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to resolve disputes"})
		case err == sql.ErrNoRows:
			c.JSON(http.StatusNotFound, gin.H{"error": "dispute not found"})
		case payments.IsValidationError(err):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// ResumeProject reactivates a paused project.
func (a Api) ResumeProject(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.engine.ResumeAfterPayment(c.Request.Context(), id); err != nil {
		if payments.IsValidationError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}
