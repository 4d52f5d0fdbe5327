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
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/model"
)

// Registry holds the configured adapters, one per gateway type, each behind a
// circuit breaker. The breaker trips on consecutive dispatch failures so a
// degraded provider fails fast instead of stalling every worker on timeouts.
type Registry struct {
	adapters map[string]Adapter
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry builds adapters from the gateway entries of the configuration.
// Unknown gateway types are rejected at startup rather than at dispatch time.
func NewRegistry(conf *config.Configuration) (*Registry, error) {
	r := &Registry{
		adapters: make(map[string]Adapter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, gc := range conf.Gateways {
		var adapter Adapter
		switch gc.Type {
		case model.GatewayCard:
			adapter = NewCardAdapter(gc)
		case model.GatewayPayout:
			adapter = NewPayoutAdapter(gc)
		case model.GatewayBank:
			adapter = NewBankAdapter(gc)
		case model.GatewayCrypto:
			adapter = NewCryptoAdapter(gc)
		default:
			return nil, fmt.Errorf("unknown gateway type %q in configuration", gc.Type)
		}
		r.register(adapter)
	}
	return r, nil
}

// NewRegistryWithAdapters wires pre-built adapters. Used by tests and by
// deployments that construct adapters themselves.
func NewRegistryWithAdapters(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, a := range adapters {
		r.register(a)
	}
	return r
}

func (r *Registry) register(a Adapter) {
	r.adapters[a.Type()] = a
	r.breakers[a.Type()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    a.Type(),
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("gateway %s circuit breaker %s -> %s", name, from, to)
		},
	})
}

// Adapter returns the adapter for a gateway type.
func (r *Registry) Adapter(gatewayType string) (Adapter, error) {
	a, ok := r.adapters[gatewayType]
	if !ok {
		return nil, fmt.Errorf("no adapter configured for gateway type %q", gatewayType)
	}
	return a, nil
}

// Dispatch routes a payment through the adapter for its gateway type, behind
// that gateway's circuit breaker. An open breaker surfaces as a transient
// gateway error so the payment stays eligible for retry.
func (r *Registry) Dispatch(ctx context.Context, payment *model.Payment) (*DispatchResult, error) {
	adapter, err := r.Adapter(payment.GatewayType)
	if err != nil {
		return nil, err
	}
	breaker := r.breakers[payment.GatewayType]

	res, err := breaker.Execute(func() (interface{}, error) {
		result, dispatchErr := adapter.Dispatch(ctx, payment)
		if dispatchErr != nil && IsPermanent(dispatchErr) {
			// A provider validation rejection is not a provider outage;
			// it must not trip the breaker.
			return &permanentFailure{err: dispatchErr}, nil
		}
		return result, dispatchErr
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, NewTransient("circuit_open", fmt.Sprintf("gateway %s circuit breaker open", payment.GatewayType), err)
		}
		return nil, err
	}
	if pf, ok := res.(*permanentFailure); ok {
		return nil, pf.err
	}
	return res.(*DispatchResult), nil
}

type permanentFailure struct {
	err error
}
