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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SecretKey string `json:"secret_key" envconfig:"PAYMENTS_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"PAYMENTS_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAYMENTS_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"PAYMENTS_REDIS_DNS"`
}

// GatewayConfig carries the credentials and endpoint for one external payment
// provider. The adapter for the matching type is constructed from this struct
// at startup; no gateway state is process-global.
type GatewayConfig struct {
	Type          string `json:"type"`
	Endpoint      string `json:"endpoint"`
	APIKey        string `json:"api_key"`
	WebhookSecret string `json:"webhook_secret"`
}

// OrchestratorConfig holds fee policy for milestone payouts. PlatformFeePercent
// is a percentage of gross, e.g. "10" for 10%.
type OrchestratorConfig struct {
	PlatformFeePercent string `json:"platform_fee_percent" envconfig:"PAYMENTS_PLATFORM_FEE_PERCENT"`
}

// ReconciliationConfig controls the periodic sweep against gateway truth.
type ReconciliationConfig struct {
	CronSpec        string `json:"cron_spec" envconfig:"PAYMENTS_RECONCILIATION_CRON"`
	GraceWindowMins int    `json:"grace_window_mins" envconfig:"PAYMENTS_RECONCILIATION_GRACE_MINS"`
	BatchSize       int    `json:"batch_size" envconfig:"PAYMENTS_RECONCILIATION_BATCH_SIZE"`
}

// EscalationConfig holds the day thresholds of the overdue-milestone ladder.
type EscalationConfig struct {
	CronSpec          string `json:"cron_spec" envconfig:"PAYMENTS_ESCALATION_CRON"`
	WarnAfterDays     int    `json:"warn_after_days" envconfig:"PAYMENTS_ESCALATION_WARN_DAYS"`
	PauseAfterDays    int    `json:"pause_after_days" envconfig:"PAYMENTS_ESCALATION_PAUSE_DAYS"`
	EscalateAfterDays int    `json:"escalate_after_days" envconfig:"PAYMENTS_ESCALATION_ESCALATE_DAYS"`
}

// RetryConfig bounds re-dispatch of transiently failed payments.
type RetryConfig struct {
	CronSpec           string `json:"cron_spec" envconfig:"PAYMENTS_RETRY_CRON"`
	MaxAttempts        int    `json:"max_attempts" envconfig:"PAYMENTS_RETRY_MAX_ATTEMPTS"`
	InitialIntervalSec int    `json:"initial_interval_sec" envconfig:"PAYMENTS_RETRY_INITIAL_INTERVAL_SEC"`
}

type QueueConfig struct {
	DispatchQueue     string `json:"dispatch_queue" envconfig:"PAYMENTS_DISPATCH_QUEUE"`
	NotificationQueue string `json:"notification_queue" envconfig:"PAYMENTS_NOTIFICATION_QUEUE"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName    string               `json:"project_name" envconfig:"PAYMENTS_PROJECT_NAME"`
	Server         ServerConfig         `json:"server"`
	DataSource     DataSourceConfig     `json:"data_source"`
	Redis          RedisConfig          `json:"redis"`
	Gateways       []GatewayConfig      `json:"gateways"`
	Orchestrator   OrchestratorConfig   `json:"orchestrator"`
	Reconciliation ReconciliationConfig `json:"reconciliation"`
	Escalation     EscalationConfig     `json:"escalation"`
	Retry          RetryConfig          `json:"retry"`
	Queue          QueueConfig          `json:"queue"`
	Notification   Notification         `json:"notification"`
	Admins         []string             `json:"admins"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("payments", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called payments.json with your config")
	}
	return c, nil
}

// GatewayByType looks up the provider credentials for a gateway type.
func (cnf *Configuration) GatewayByType(typ string) (GatewayConfig, bool) {
	for _, g := range cnf.Gateways {
		if g.Type == typ {
			return g, true
		}
	}
	return GatewayConfig{}, false
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Payments Engine"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Orchestrator.PlatformFeePercent == "" {
		cnf.Orchestrator.PlatformFeePercent = "10"
	}

	if cnf.Reconciliation.CronSpec == "" {
		cnf.Reconciliation.CronSpec = "@every 15m"
	}
	if cnf.Reconciliation.GraceWindowMins <= 0 {
		cnf.Reconciliation.GraceWindowMins = 30
	}
	if cnf.Reconciliation.BatchSize <= 0 {
		cnf.Reconciliation.BatchSize = 100
	}

	if cnf.Escalation.CronSpec == "" {
		cnf.Escalation.CronSpec = "@every 1h"
	}
	if cnf.Escalation.WarnAfterDays <= 0 {
		cnf.Escalation.WarnAfterDays = 3
	}
	if cnf.Escalation.PauseAfterDays <= 0 {
		cnf.Escalation.PauseAfterDays = 7
	}
	if cnf.Escalation.EscalateAfterDays <= 0 {
		cnf.Escalation.EscalateAfterDays = 14
	}

	if cnf.Retry.CronSpec == "" {
		cnf.Retry.CronSpec = "@every 5m"
	}
	if cnf.Retry.MaxAttempts <= 0 {
		cnf.Retry.MaxAttempts = 5
	}
	if cnf.Retry.InitialIntervalSec <= 0 {
		cnf.Retry.InitialIntervalSec = 60
	}

	if cnf.Queue.DispatchQueue == "" {
		cnf.Queue.DispatchQueue = "payments:dispatch"
	}
	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "payments:notification"
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes. Connection
// strings are stubbed when absent so defaults still apply.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.DataSource.Dns == "" {
		mockConfig.DataSource.Dns = "postgres://mock"
	}
	if mockConfig.Redis.Dns == "" {
		mockConfig.Redis.Dns = "localhost:6379"
	}
	if err := mockConfig.validateAndAddDefaults(); err != nil {
		logrus.Warn(err)
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
