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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nexusworks/payments"
	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/internal/notification"
	redis_db "github.com/nexusworks/payments/internal/redis-db"
)

// processDispatch handles a queued payment dispatch task.
func (b *appInstance) processDispatch(ctx context.Context, t *asynq.Task) error {
	var payload payments.DispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	if err := b.engine.DispatchQueued(ctx, payload.PaymentID); err != nil {
		logrus.Infof("Payment %s pushed back for retry due to error: %v", payload.PaymentID, err)
		return err
	}

	log.Println(" [*] Payment Dispatched", payload.PaymentID)
	return nil
}

// processNotification delivers a queued notification.
func (b *appInstance) processNotification(ctx context.Context, t *asynq.Task) error {
	var payload payments.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}
	return payments.DeliverNotification(ctx, payload)
}

func initializeQueues(conf *config.Configuration) map[string]int {
	queues := make(map[string]int)
	queues[conf.Queue.DispatchQueue] = 3
	queues[conf.Queue.NotificationQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 4,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *appInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(b.cnf.Queue.DispatchQueue, b.processDispatch)
	mux.HandleFunc(b.cnf.Queue.NotificationQueue, b.processNotification)
}

// startSchedulers registers the periodic sweeps: reconciliation against
// gateway truth, the overdue-milestone escalation ladder, and the pending
// payment retry pass.
func startSchedulers(ctx context.Context, b *appInstance) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(b.cnf.Reconciliation.CronSpec, func() {
		result, err := b.engine.SweepReconciliation(ctx)
		if err != nil {
			notification.NotifyError(err)
			return
		}
		logrus.Infof("reconciliation sweep: examined=%d corrected=%d mismatches=%d skipped=%d",
			result.Examined, result.Corrected, result.Mismatches, result.Skipped)
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(b.cnf.Escalation.CronSpec, func() {
		result, err := b.engine.CheckOverdueMilestones(ctx)
		if err != nil {
			notification.NotifyError(err)
			return
		}
		logrus.Infof("escalation sweep: examined=%d warned=%d paused=%d escalated=%d",
			result.Examined, result.Warned, result.Paused, result.Escalated)
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(b.cnf.Retry.CronSpec, func() {
		result, err := b.engine.RetryPendingPayments(ctx)
		if err != nil {
			notification.NotifyError(err)
			return
		}
		logrus.Infof("retry sweep: examined=%d scheduled=%d demoted=%d",
			result.Examined, result.Scheduled, result.Demoted)
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

// workerCommands defines the "workers" command that runs the queue consumers
// and the periodic sweeps.
func workerCommands(b *appInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start payments workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues(conf)
			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			scheduler, err := startSchedulers(ctx, b)
			if err != nil {
				log.Fatal("Error starting schedulers:", err)
			}
			defer scheduler.Stop()

			if err := srv.Run(mux); err != nil {
				notification.NotifyError(err)
				log.Fatal(err)
			}
		},
	}
	return cmd
}
