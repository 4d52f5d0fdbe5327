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

package notification

import (
	"errors"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/nexusworks/payments/config"
	"github.com/stretchr/testify/assert"
)

func TestSlackNotificationPostsToWebhook(t *testing.T) {
	cnf := &config.Configuration{}
	cnf.Notification.Slack.WebhookUrl = "https://hooks.slack.example/services/T000/B000"
	config.MockConfig(cnf)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "https://hooks.slack.example/services/T000/B000",
		httpmock.NewStringResponder(200, "ok"))

	SlackNotification(errors.New("gateway unreachable"))

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSlackNotificationMissingConfigDoesNotPanic(t *testing.T) {
	cnf := &config.Configuration{}
	config.MockConfig(cnf)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	assert.NotPanics(t, func() {
		SlackNotification(errors.New("boom"))
	})
}
