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
	"github.com/gin-gonic/gin"

	"github.com/nexusworks/payments"
	"github.com/nexusworks/payments/api/middleware"
	"github.com/nexusworks/payments/config"
)

type Api struct {
	engine *payments.Engine
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/webhooks/:gateway", a.IngestWebhook)

	router.POST("/milestones/:id/process", a.ProcessMilestone)

	router.GET("/payments/:id", a.GetPayment)
	router.GET("/payments/:id/logs", a.GetPaymentLogs)

	router.POST("/disputes", a.OpenDispute)
	router.POST("/disputes/:id/resolve", a.ResolveDispute)

	router.POST("/projects/:id/resume", a.ResumeProject)
	return a.router
}

func NewAPI(engine *payments.Engine) (*Api, error) {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	r := gin.Default()
	if conf.Server.SecretKey != "" {
		// Webhook endpoints authenticate with provider signatures, not
		// the platform secret key.
		r.Use(middleware.SecretKeyAuthMiddleware("/webhooks/"))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{engine: engine, router: r}, nil
}
