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

package payments

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nexusworks/payments/config"
	redis_db "github.com/nexusworks/payments/internal/redis-db"
)

// Queue wraps the asynq client for payment dispatch and notification tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// DispatchPayload is the body of a queued dispatch task.
type DispatchPayload struct {
	PaymentID string `json:"payment_id"`
}

// NotificationPayload is the body of a queued notification task.
type NotificationPayload struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueDispatch schedules a payment dispatch after the given delay. The
// task id is the payment id, so re-enqueuing a payment that is already
// scheduled is a duplicate and is dropped by the queue.
func (q *Queue) EnqueueDispatch(_ context.Context, paymentID string, delay time.Duration) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(DispatchPayload{PaymentID: paymentID})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(paymentID),
		asynq.Queue(cfg.Queue.DispatchQueue),
		asynq.ProcessIn(delay),
	}
	task := asynq.NewTask(cfg.Queue.DispatchQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err == asynq.ErrTaskIDConflict || err == asynq.ErrDuplicateTask {
		log.Printf(" [*] Dispatch for %s already scheduled", paymentID)
		return nil
	}
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued dispatch: %+v", paymentID)
	return nil
}

// EnqueueNotification queues a notification for async delivery.
func (q *Queue) EnqueueNotification(_ context.Context, payload NotificationPayload) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.Queue(cfg.Queue.NotificationQueue),
		asynq.MaxRetry(5),
	}
	task := asynq.NewTask(cfg.Queue.NotificationQueue, body, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}
